// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package foodcart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/starburger/foodcart/eligibility"
)

// ErrNotFound is returned when an order or restaurant does not exist.
var ErrNotFound = errors.New("not found")

// Repository handles persistence of the catalogue and the orders.
type Repository interface {
	// CreateSchema creates the tables
	CreateSchema(ctx context.Context) error

	// SaveRestaurant inserts a restaurant, or updates it when ID is set
	SaveRestaurant(ctx context.Context, restaurant *Restaurant) error

	// SaveCategory inserts a category, or updates it when ID is set
	SaveCategory(ctx context.Context, category *ProductCategory) error

	// SaveProduct inserts a product, or updates it when ID is set
	SaveProduct(ctx context.Context, product *Product) error

	// SaveMenuItem upserts the availability of a product in a restaurant
	SaveMenuItem(ctx context.Context, item eligibility.MenuItem) error

	// CreateOrder stores an order and freezes the current price of its products
	CreateOrder(ctx context.Context, order *Order) error

	// GetOrder returns an order with its items
	GetOrder(ctx context.Context, id int64) (*Order, error)

	// ListOrders returns the orders with one of the given statuses, all when none is given
	ListOrders(ctx context.Context, statuses ...OrderStatus) ([]*Order, error)

	// GetRestaurant returns a single restaurant
	GetRestaurant(ctx context.Context, id int64) (*Restaurant, error)

	// ListRestaurants returns every restaurant sorted by id
	ListRestaurants(ctx context.Context) ([]*Restaurant, error)

	// ListCategories returns every category sorted by id
	ListCategories(ctx context.Context) ([]*ProductCategory, error)

	// ListProducts returns every product sorted by id
	ListProducts(ctx context.Context) ([]*Product, error)

	// AvailableProducts returns the products available in at least one restaurant
	AvailableProducts(ctx context.Context) ([]*Product, error)

	// ListMenuItems returns the menu, optionally only the available items
	ListMenuItems(ctx context.Context, onlyAvailable bool) ([]eligibility.MenuItem, error)

	// MenuSnapshot indexes the available menu items
	MenuSnapshot(ctx context.Context) (*eligibility.Snapshot, error)

	// DB returns the underlying database connection
	DB() *sql.DB
}

type sqlRepository struct {
	db *sql.DB
}

// NewRepository creates a repository on top of an open DuckDB handle.
func NewRepository(db *sql.DB) Repository {
	return &sqlRepository{db: db}
}

func (r *sqlRepository) DB() *sql.DB {
	return r.db
}

func (r *sqlRepository) CreateSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE SEQUENCE IF NOT EXISTS restaurants_seq START 1000;
		CREATE SEQUENCE IF NOT EXISTS product_categories_seq START 1000;
		CREATE SEQUENCE IF NOT EXISTS products_seq START 1000;
		CREATE SEQUENCE IF NOT EXISTS orders_seq START 1000;

		CREATE TABLE IF NOT EXISTS restaurants (
			id BIGINT PRIMARY KEY DEFAULT nextval('restaurants_seq'),
			name VARCHAR NOT NULL,
			address VARCHAR NOT NULL DEFAULT '',
			contact_phone VARCHAR NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS product_categories (
			id BIGINT PRIMARY KEY DEFAULT nextval('product_categories_seq'),
			name VARCHAR NOT NULL
		);

		CREATE TABLE IF NOT EXISTS products (
			id BIGINT PRIMARY KEY DEFAULT nextval('products_seq'),
			name VARCHAR NOT NULL,
			category_id BIGINT,
			price DECIMAL(8,2) NOT NULL CHECK (price >= 0),
			image VARCHAR NOT NULL DEFAULT '',
			special_status BOOLEAN NOT NULL DEFAULT FALSE,
			description VARCHAR NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS restaurant_menu_items (
			restaurant_id BIGINT NOT NULL,
			product_id BIGINT NOT NULL,
			availability BOOLEAN NOT NULL DEFAULT TRUE,
			PRIMARY KEY (restaurant_id, product_id)
		);

		CREATE TABLE IF NOT EXISTS orders (
			id BIGINT PRIMARY KEY DEFAULT nextval('orders_seq'),
			first_name VARCHAR NOT NULL,
			last_name VARCHAR NOT NULL,
			phone_number VARCHAR NOT NULL,
			address VARCHAR NOT NULL,
			status VARCHAR NOT NULL DEFAULT 'N',
			payment_method VARCHAR NOT NULL DEFAULT '',
			comment VARCHAR NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			called_at TIMESTAMP,
			delivered_at TIMESTAMP,
			selected_restaurant_id BIGINT
		);

		CREATE TABLE IF NOT EXISTS order_items (
			order_id BIGINT NOT NULL,
			product_id BIGINT NOT NULL,
			frozen_price DECIMAL(8,2) NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			PRIMARY KEY (order_id, product_id)
		);
	`)

	return err
}

func (r *sqlRepository) SaveRestaurant(ctx context.Context, restaurant *Restaurant) error {
	if restaurant.ID == 0 {
		return r.db.QueryRowContext(ctx, `
			INSERT INTO restaurants (name, address, contact_phone) VALUES (?, ?, ?)
			RETURNING id
		`, restaurant.Name, restaurant.Address, restaurant.ContactPhone).Scan(&restaurant.ID)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO restaurants (id, name, address, contact_phone) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			contact_phone = excluded.contact_phone
	`, restaurant.ID, restaurant.Name, restaurant.Address, restaurant.ContactPhone)

	return err
}

func (r *sqlRepository) SaveCategory(ctx context.Context, category *ProductCategory) error {
	if category.ID == 0 {
		return r.db.QueryRowContext(ctx,
			`INSERT INTO product_categories (name) VALUES (?) RETURNING id`,
			category.Name,
		).Scan(&category.ID)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO product_categories (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name
	`, category.ID, category.Name)

	return err
}

func (r *sqlRepository) SaveProduct(ctx context.Context, product *Product) error {
	if product.Price.IsNegative() {
		return fmt.Errorf("product %q: negative price %s", product.Name, product.Price)
	}

	var categoryID sql.NullInt64
	if product.CategoryID != nil {
		categoryID = sql.NullInt64{Int64: *product.CategoryID, Valid: true}
	}

	price := product.Price.StringFixed(2)

	if product.ID == 0 {
		return r.db.QueryRowContext(ctx, `
			INSERT INTO products (name, category_id, price, image, special_status, description)
			VALUES (?, ?, CAST(? AS DECIMAL(8,2)), ?, ?, ?)
			RETURNING id
		`, product.Name, categoryID, price, product.Image, product.SpecialStatus, product.Description).Scan(&product.ID)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category_id, price, image, special_status, description)
		VALUES (?, ?, ?, CAST(? AS DECIMAL(8,2)), ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			category_id = excluded.category_id,
			price = excluded.price,
			image = excluded.image,
			special_status = excluded.special_status,
			description = excluded.description
	`, product.ID, product.Name, categoryID, price, product.Image, product.SpecialStatus, product.Description)

	return err
}

func (r *sqlRepository) SaveMenuItem(ctx context.Context, item eligibility.MenuItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO restaurant_menu_items (restaurant_id, product_id, availability) VALUES (?, ?, ?)
		ON CONFLICT (restaurant_id, product_id) DO UPDATE SET availability = excluded.availability
	`, item.RestaurantID, item.ProductID, item.Available)

	return err
}

func (r *sqlRepository) CreateOrder(ctx context.Context, order *Order) (err error) {
	if err := eligibility.ValidateLines(order.Lines()); err != nil {
		return err
	}

	if strings.TrimSpace(order.Address) == "" {
		return fmt.Errorf("%w: empty address", eligibility.ErrInvalidOrder)
	}

	if order.Status == "" {
		order.Status = StatusNew
	}

	if !order.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", eligibility.ErrInvalidOrder, order.Status)
	}

	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
			}
		}
	}()

	columns := "first_name, last_name, phone_number, address, status, payment_method, " +
		"comment, created_at, called_at, delivered_at, selected_restaurant_id"
	values := "?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?"
	args := []any{
		order.FirstName,
		order.LastName,
		order.PhoneNumber,
		order.Address,
		string(order.Status),
		string(order.PaymentMethod),
		order.Comment,
		order.CreatedAt,
		nullTime(order.CalledAt),
		nullTime(order.DeliveredAt),
		nullInt64(order.SelectedRestaurantID),
	}

	if order.ID != 0 {
		columns = "id, " + columns
		values = "?, " + values
		args = append([]any{order.ID}, args...)
	}

	err = tx.QueryRowContext(ctx,
		"INSERT INTO orders ("+columns+") VALUES ("+values+") RETURNING id",
		args...,
	).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]

		var price string

		err = tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, frozen_price, quantity)
			SELECT ?, id, price, ? FROM products WHERE id = ?
			RETURNING CAST(frozen_price AS VARCHAR)
		`, order.ID, item.Quantity, item.ProductID).Scan(&price)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: unknown product %d", eligibility.ErrInvalidOrder, item.ProductID)
		}

		if err != nil {
			return fmt.Errorf("inserting item for product %d: %w", item.ProductID, err)
		}

		item.FrozenPrice, err = decimal.NewFromString(price)
		if err != nil {
			return fmt.Errorf("parsing frozen price: %w", err)
		}
	}

	return tx.Commit()
}

const selectOrder = `
	SELECT id, first_name, last_name, phone_number, address, status, payment_method,
		comment, created_at, called_at, delivered_at, selected_restaurant_id
	FROM orders
`

func scanOrder(row interface{ Scan(dest ...any) error }) (*Order, error) {
	var (
		order                 Order
		status, payment       string
		calledAt, deliveredAt sql.NullTime
		selected              sql.NullInt64
	)

	err := row.Scan(
		&order.ID,
		&order.FirstName,
		&order.LastName,
		&order.PhoneNumber,
		&order.Address,
		&status,
		&payment,
		&order.Comment,
		&order.CreatedAt,
		&calledAt,
		&deliveredAt,
		&selected,
	)
	if err != nil {
		return nil, err
	}

	order.Status = OrderStatus(status)
	order.PaymentMethod = PaymentMethod(payment)

	if calledAt.Valid {
		order.CalledAt = &calledAt.Time
	}

	if deliveredAt.Valid {
		order.DeliveredAt = &deliveredAt.Time
	}

	if selected.Valid {
		order.SelectedRestaurantID = &selected.Int64
	}

	return &order, nil
}

func (r *sqlRepository) GetOrder(ctx context.Context, id int64) (*Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, selectOrder+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("reading order %d: %w", id, err)
	}

	items, err := r.orderItems(ctx, "WHERE order_id = ?", id)
	if err != nil {
		return nil, err
	}

	order.Items = items[order.ID]

	return order, nil
}

func (r *sqlRepository) ListOrders(ctx context.Context, statuses ...OrderStatus) ([]*Order, error) {
	query := selectOrder
	args := make([]any, 0, len(statuses))

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, s := range statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}

		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	rows, err := r.db.QueryContext(ctx, query+" ORDER BY created_at, id", args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}

		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return orders, nil
	}

	placeholders := make([]string, len(orders))
	ids := make([]any, len(orders))

	for i, order := range orders {
		placeholders[i] = "?"
		ids[i] = order.ID
	}

	items, err := r.orderItems(ctx, "WHERE order_id IN ("+strings.Join(placeholders, ", ")+")", ids...)
	if err != nil {
		return nil, err
	}

	for _, order := range orders {
		order.Items = items[order.ID]
	}

	return orders, nil
}

// orderItems loads items grouped by order id, keeping insertion order.
func (r *sqlRepository) orderItems(ctx context.Context, where string, args ...any) (map[int64][]OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, CAST(frozen_price AS VARCHAR)
		FROM order_items `+where+`
		ORDER BY order_id, rowid
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64][]OrderItem)

	for rows.Next() {
		var (
			orderID int64
			item    OrderItem
			price   string
		)

		if err := rows.Scan(&orderID, &item.ProductID, &item.Quantity, &price); err != nil {
			return nil, err
		}

		item.FrozenPrice, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parsing frozen price: %w", err)
		}

		items[orderID] = append(items[orderID], item)
	}

	return items, rows.Err()
}

func (r *sqlRepository) GetRestaurant(ctx context.Context, id int64) (*Restaurant, error) {
	var restaurant Restaurant

	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, address, contact_phone FROM restaurants WHERE id = ?", id,
	).Scan(&restaurant.ID, &restaurant.Name, &restaurant.Address, &restaurant.ContactPhone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("restaurant %d: %w", id, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("reading restaurant %d: %w", id, err)
	}

	return &restaurant, nil
}

func (r *sqlRepository) ListRestaurants(ctx context.Context) ([]*Restaurant, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, address, contact_phone FROM restaurants ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing restaurants: %w", err)
	}
	defer rows.Close()

	var restaurants []*Restaurant

	for rows.Next() {
		var restaurant Restaurant
		if err := rows.Scan(&restaurant.ID, &restaurant.Name, &restaurant.Address, &restaurant.ContactPhone); err != nil {
			return nil, err
		}

		restaurants = append(restaurants, &restaurant)
	}

	return restaurants, rows.Err()
}

func (r *sqlRepository) ListCategories(ctx context.Context) ([]*ProductCategory, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM product_categories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []*ProductCategory

	for rows.Next() {
		var category ProductCategory
		if err := rows.Scan(&category.ID, &category.Name); err != nil {
			return nil, err
		}

		categories = append(categories, &category)
	}

	return categories, rows.Err()
}

const selectProduct = `
	SELECT id, name, category_id, CAST(price AS VARCHAR), image, special_status, description
	FROM products
`

func (r *sqlRepository) queryProducts(ctx context.Context, query string) ([]*Product, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []*Product

	for rows.Next() {
		var (
			product    Product
			categoryID sql.NullInt64
			price      string
		)

		err := rows.Scan(
			&product.ID,
			&product.Name,
			&categoryID,
			&price,
			&product.Image,
			&product.SpecialStatus,
			&product.Description,
		)
		if err != nil {
			return nil, err
		}

		if categoryID.Valid {
			product.CategoryID = &categoryID.Int64
		}

		product.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parsing price of product %d: %w", product.ID, err)
		}

		products = append(products, &product)
	}

	return products, rows.Err()
}

func (r *sqlRepository) ListProducts(ctx context.Context) ([]*Product, error) {
	return r.queryProducts(ctx, selectProduct+" ORDER BY id")
}

func (r *sqlRepository) AvailableProducts(ctx context.Context) ([]*Product, error) {
	return r.queryProducts(ctx, selectProduct+`
		WHERE id IN (SELECT product_id FROM restaurant_menu_items WHERE availability)
		ORDER BY id
	`)
}

func (r *sqlRepository) ListMenuItems(ctx context.Context, onlyAvailable bool) ([]eligibility.MenuItem, error) {
	query := "SELECT restaurant_id, product_id, availability FROM restaurant_menu_items"
	if onlyAvailable {
		query += " WHERE availability"
	}

	rows, err := r.db.QueryContext(ctx, query+" ORDER BY restaurant_id, product_id")
	if err != nil {
		return nil, fmt.Errorf("listing menu items: %w", err)
	}
	defer rows.Close()

	var items []eligibility.MenuItem

	for rows.Next() {
		var item eligibility.MenuItem
		if err := rows.Scan(&item.RestaurantID, &item.ProductID, &item.Available); err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *sqlRepository) MenuSnapshot(ctx context.Context) (*eligibility.Snapshot, error) {
	items, err := r.ListMenuItems(ctx, true)
	if err != nil {
		return nil, err
	}

	return eligibility.NewSnapshot(items), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: *v, Valid: true}
}
