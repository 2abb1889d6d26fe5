// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

// Package foodcart holds the catalogue and order data of the delivery
// service and its DuckDB persistence.
package foodcart

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/starburger/foodcart/eligibility"
)

// Restaurant is a kitchen that can prepare orders.
type Restaurant struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	ContactPhone string `json:"contact_phone"`
}

// ProductCategory groups products in the catalogue.
type ProductCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Product is an item of the catalogue.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	CategoryID    *int64          `json:"category_id,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Image         string          `json:"image"`
	SpecialStatus bool            `json:"special_status"`
	Description   string          `json:"description"`
}

// OrderStatus is the stage of an order. Transitions are managed elsewhere.
type OrderStatus string

const (
	StatusNew        OrderStatus = "N"
	StatusAssembly   OrderStatus = "A"
	StatusInDelivery OrderStatus = "D"
	StatusFinished   OrderStatus = "F"
	StatusCanceled   OrderStatus = "C"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusNew, StatusAssembly, StatusInDelivery, StatusFinished, StatusCanceled:
		return true
	}

	return false
}

// PaymentMethod is how the customer pays. Empty means not chosen yet.
type PaymentMethod string

const (
	PaymentNone          PaymentMethod = ""
	PaymentCash          PaymentMethod = "CASH"
	PaymentCardOnSite    PaymentMethod = "SITE"
	PaymentCardToCourier PaymentMethod = "CARD"
)

// OrderItem is a product of an order with the price it had when the order
// was placed.
type OrderItem struct {
	ProductID   int64           `json:"product"`
	Quantity    int             `json:"quantity"`
	FrozenPrice decimal.Decimal `json:"frozen_price"`
}

// Order is a customer request for delivery.
type Order struct {
	ID                   int64         `json:"id"`
	FirstName            string        `json:"firstname"`
	LastName             string        `json:"lastname"`
	PhoneNumber          string        `json:"phonenumber"`
	Address              string        `json:"address"`
	Status               OrderStatus   `json:"status"`
	PaymentMethod        PaymentMethod `json:"payment_method"`
	Comment              string        `json:"comment"`
	CreatedAt            time.Time     `json:"created_at"`
	CalledAt             *time.Time    `json:"called_at,omitempty"`
	DeliveredAt          *time.Time    `json:"delivered_at,omitempty"`
	SelectedRestaurantID *int64        `json:"selected_restaurant,omitempty"`
	Items                []OrderItem   `json:"products"`
}

// Lines returns the order items as eligibility input.
func (o *Order) Lines() []eligibility.OrderLine {
	lines := make([]eligibility.OrderLine, len(o.Items))
	for i, item := range o.Items {
		lines[i] = eligibility.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	return lines
}
