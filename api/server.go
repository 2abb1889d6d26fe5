// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

// Package api exposes restaurant selection over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/starburger/foodcart/dispatch"
	"github.com/starburger/foodcart/eligibility"
	"github.com/starburger/foodcart/foodcart"
	"github.com/starburger/foodcart/geocoding"
	"github.com/starburger/foodcart/spatial"
)

const shutdownTimeout = 5 * time.Second

// Catalogue lists the products customers can order.
type Catalogue interface {
	AvailableProducts(ctx context.Context) ([]*foodcart.Product, error)
}

// Dispatcher resolves the restaurants for orders.
type Dispatcher interface {
	ResolveAndRank(ctx context.Context, orderID int64) (*dispatch.Assignment, error)
	IsEligible(ctx context.Context, orderID, restaurantID int64) (bool, error)
	ResolveAndRankAll(ctx context.Context, statuses ...foodcart.OrderStatus) ([]*dispatch.Assignment, error)
}

// Locator geocodes a free-form address.
type Locator interface {
	Locate(ctx context.Context, address string) (*spatial.Coordinate, error)
}

type Server struct {
	catalogue  Catalogue
	dispatcher Dispatcher
	locator    Locator
}

func NewServer(catalogue Catalogue, dispatcher Dispatcher, locator Locator) *Server {
	return &Server{
		catalogue:  catalogue,
		dispatcher: dispatcher,
		locator:    locator,
	}
}

// Handler returns the router with every route registered.
func (s *Server) Handler() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", s.healthz)
	r.GET("/api/products", s.listProducts)
	r.GET("/api/orders/restaurants", s.listAssignments)
	r.GET("/api/orders/:id/restaurants", s.orderRestaurants)
	r.GET("/api/orders/:id/restaurants/:restaurant_id/eligible", s.isEligible)
	r.GET("/api/geocode", s.geocode)

	return r
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Printf("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listProducts(ctx *gin.Context) {
	products, err := s.catalogue.AvailableProducts(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list products"})

		return
	}

	ctx.JSON(http.StatusOK, products)
}

func (s *Server) orderRestaurants(ctx *gin.Context) {
	orderID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	assignment, err := s.dispatcher.ResolveAndRank(ctx.Request.Context(), orderID)
	if err != nil {
		respondError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, assignment)
}

func (s *Server) isEligible(ctx *gin.Context) {
	orderID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	restaurantID, ok := idParam(ctx, "restaurant_id")
	if !ok {
		return
	}

	eligible, err := s.dispatcher.IsEligible(ctx.Request.Context(), orderID, restaurantID)
	if err != nil {
		respondError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"order_id":      orderID,
		"restaurant_id": restaurantID,
		"eligible":      eligible,
	})
}

func (s *Server) listAssignments(ctx *gin.Context) {
	var statuses []foodcart.OrderStatus

	for _, v := range ctx.QueryArray("status") {
		status := foodcart.OrderStatus(v)
		if !status.Valid() {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown status %q", v)})

			return
		}

		statuses = append(statuses, status)
	}

	assignments, err := s.dispatcher.ResolveAndRankAll(ctx.Request.Context(), statuses...)
	if err != nil {
		respondError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, assignments)
}

func (s *Server) geocode(ctx *gin.Context) {
	address := ctx.Query("address")
	if geocoding.NormalizeAddress(address).IsEmpty() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "address query parameter is required"})

		return
	}

	coord, err := s.locator.Locate(ctx.Request.Context(), address)
	if err != nil {
		if geocoding.IsProviderError(err) {
			ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

			return
		}

		respondError(ctx, err)

		return
	}

	if coord == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "address not found"})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"address": address, "coordinate": coord})
}

func idParam(ctx *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s", name)})

		return 0, false
	}

	return id, true
}

func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, foodcart.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, eligibility.ErrInvalidOrder):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("request %s failed: %v", ctx.Request.URL.Path, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
