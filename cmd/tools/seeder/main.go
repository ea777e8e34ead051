package main

import (
	"context"
	"log"
	"os"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// Seeds a development database with an admin account, a small catalog and a
// couple of coupons. Safe to run repeatedly: every statement upserts.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	seedUsers(ctx, pool)
	seedCatalog(ctx, pool)
	seedCoupons(ctx, pool)

	log.Println("seeding completed")
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) {
	users := []struct {
		Email    string
		Name     string
		Role     string
		Password string
	}{
		{"admin@storefront.local", "Store Admin", "admin", "admin123!"},
		{"jane@example.com", "Jane Doe", "customer", "password123"},
		{"omar@example.com", "Omar Haddad", "customer", "password123"},
	}

	log.Println("seeding users...")
	for _, u := range users {
		hash, err := argon2id.CreateHash(u.Password, argon2id.DefaultParams)
		if err != nil {
			log.Fatalf("hash password for %s: %v", u.Email, err)
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO users (id, email, password_hash, full_name, role)
			VALUES (gen_random_uuid(), lower($1), $2, $3, $4)
			ON CONFLICT (lower(email)) DO NOTHING`,
			u.Email, hash, u.Name, u.Role)
		if err != nil {
			log.Printf("seed user %s: %v", u.Email, err)
		}
	}
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) {
	categories := []struct {
		Slug string
		Name string
	}{
		{"electronics", "Electronics"},
		{"fashion", "Fashion"},
		{"home-living", "Home & Living"},
		{"sports", "Sports"},
		{"books", "Books"},
	}

	log.Println("seeding categories...")
	catIDs := make(map[string]string)
	for i, c := range categories {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO categories (id, slug, name, sort_order)
			VALUES (gen_random_uuid(), $1, $2, $3)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, sort_order = EXCLUDED.sort_order
			RETURNING id`,
			c.Slug, c.Name, i).Scan(&id)
		if err != nil {
			log.Printf("seed category %s: %v", c.Slug, err)
			continue
		}
		catIDs[c.Slug] = id
	}

	log.Println("seeding banners...")
	banners := []struct {
		Title string
		Image string
	}{
		{"Back to school sale", "https://images.example.com/banners/back-to-school.jpg"},
		{"Free shipping over $50", "https://images.example.com/banners/free-shipping.jpg"},
	}
	for i, b := range banners {
		_, err := pool.Exec(ctx, `
			INSERT INTO banners (id, title, image_url, sort_order, active)
			VALUES (gen_random_uuid(), $1, $2, $3, true)
			ON CONFLICT DO NOTHING`,
			b.Title, b.Image, i)
		if err != nil {
			log.Printf("seed banner %q: %v", b.Title, err)
		}
	}

	products := []struct {
		Slug     string
		Name     string
		Category string
		Price    string
		Stock    int
		Image    string
	}{
		{"wireless-headphones", "Wireless Headphones", "electronics", "199.99", 120, "https://images.example.com/products/headphones.jpg"},
		{"smart-watch-s3", "Smart Watch S3", "electronics", "249.00", 80, "https://images.example.com/products/watch.jpg"},
		{"usb-c-charger-65w", "USB-C Charger 65W", "electronics", "39.99", 300, "https://images.example.com/products/charger.jpg"},
		{"running-shoes-aero", "Aero Running Shoes", "sports", "89.95", 150, "https://images.example.com/products/shoes.jpg"},
		{"yoga-mat-pro", "Yoga Mat Pro", "sports", "34.50", 200, "https://images.example.com/products/yoga-mat.jpg"},
		{"denim-jacket-classic", "Classic Denim Jacket", "fashion", "79.00", 60, "https://images.example.com/products/jacket.jpg"},
		{"ceramic-mug-set", "Ceramic Mug Set", "home-living", "24.99", 250, "https://images.example.com/products/mugs.jpg"},
		{"reading-lamp-fold", "Foldable Reading Lamp", "home-living", "45.00", 90, "https://images.example.com/products/lamp.jpg"},
		{"sci-fi-anthology", "Science Fiction Anthology", "books", "18.75", 400, "https://images.example.com/products/anthology.jpg"},
	}

	log.Println("seeding products...")
	for _, p := range products {
		catID, ok := catIDs[p.Category]
		if !ok {
			log.Printf("missing category id for %s", p.Category)
			continue
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, slug, name, description, price, stock, category_id, image_url, active)
			VALUES (gen_random_uuid(), $1, $2, '', $3, $4, $5, $6, true)
			ON CONFLICT (slug) DO UPDATE SET
				price = EXCLUDED.price,
				stock = EXCLUDED.stock,
				category_id = EXCLUDED.category_id,
				image_url = EXCLUDED.image_url`,
			p.Slug, p.Name, p.Price, p.Stock, catID, p.Image)
		if err != nil {
			log.Printf("seed product %s: %v", p.Slug, err)
		}
	}
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) {
	coupons := []struct {
		Code        string
		Kind        string
		Value       string
		MinSubtotal string
	}{
		{"WELCOME10", "percentage", "10", "0"},
		{"SAVE15", "fixed_amount", "15", "75"},
		{"SHIPFREE", "free_shipping", "1", "25"},
	}

	log.Println("seeding coupons...")
	for _, c := range coupons {
		_, err := pool.Exec(ctx, `
			INSERT INTO coupons (id, code, kind, value, min_subtotal, active, starts_at, ends_at)
			VALUES (gen_random_uuid(), upper($1), $2, $3, $4, true, now(), now() + interval '1 year')
			ON CONFLICT (upper(code)) DO NOTHING`,
			c.Code, c.Kind, c.Value, c.MinSubtotal)
		if err != nil {
			log.Printf("seed coupon %s: %v", c.Code, err)
		}
	}
}
