package dbx

import (
	"context"
	"fmt"
)

// Migration is one forward-only schema step, applied in order.
type Migration struct {
	Name string
	SQL  string
}

// Migrations is the canonical operational schema, applied offline via
// `convoyd migrate` rather than introspected at runtime.
var Migrations = []Migration{
	{
		Name: "0001_users_and_catalog",
		SQL: `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	kind TEXT NOT NULL CHECK (kind IN ('admin','business_owner','branch','employee')),
	parent_user_id UUID REFERENCES users(id),
	business_type TEXT NOT NULL DEFAULT 'generic',
	name TEXT NOT NULL,
	timezone TEXT NOT NULL DEFAULT 'UTC',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS business_addons (
	business_id UUID NOT NULL REFERENCES users(id),
	addon_key TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('active','inactive')),
	price_override NUMERIC,
	PRIMARY KEY (business_id, addon_key)
);

CREATE TABLE IF NOT EXISTS service_categories (
	id UUID PRIMARY KEY,
	business_id UUID NOT NULL REFERENCES users(id),
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS menus (
	id UUID PRIMARY KEY,
	business_id UUID NOT NULL REFERENCES users(id),
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	id UUID PRIMARY KEY,
	business_id UUID NOT NULL REFERENCES users(id),
	owner_user_id UUID NOT NULL REFERENCES users(id),
	menu_id UUID REFERENCES menus(id),
	category_id UUID REFERENCES service_categories(id),
	name TEXT NOT NULL,
	description TEXT,
	item_type TEXT NOT NULL CHECK (item_type IN ('good','service')),
	price NUMERIC NOT NULL,
	cost NUMERIC,
	preparation_time_minutes INT,
	duration_minutes INT,
	is_schedulable BOOLEAN NOT NULL DEFAULT false,
	min_schedule_hours INT NOT NULL DEFAULT 0,
	cancelable_before_hours INT,
	stock_quantity INT,
	times_ordered INT NOT NULL DEFAULT 0,
	times_delivered INT NOT NULL DEFAULT 0,
	availability TEXT NOT NULL DEFAULT 'available' CHECK (availability IN ('available','unavailable','hidden')),
	availability_status TEXT,
	days_available INT[],
	available_from TIME,
	available_to TIME,
	deleted_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS tables (
	id UUID PRIMARY KEY,
	business_id UUID NOT NULL REFERENCES users(id),
	owner_user_id UUID NOT NULL REFERENCES users(id),
	table_number INT NOT NULL,
	min_seats INT NOT NULL,
	max_seats INT NOT NULL CHECK (max_seats >= min_seats),
	position_label TEXT,
	is_active BOOLEAN NOT NULL DEFAULT true,
	UNIQUE (owner_user_id, table_number)
);

CREATE TABLE IF NOT EXISTS opening_hours (
	owner_type TEXT NOT NULL CHECK (owner_type IN ('business','branch')),
	owner_id UUID NOT NULL REFERENCES users(id),
	day_of_week INT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
	open_time TIME,
	close_time TIME,
	is_closed BOOLEAN NOT NULL DEFAULT false,
	last_order_time TIME,
	PRIMARY KEY (owner_type, owner_id, day_of_week)
);

CREATE TABLE IF NOT EXISTS bot_integrations (
	business_id UUID NOT NULL REFERENCES users(id),
	platform TEXT NOT NULL,
	access_token TEXT NOT NULL,
	phone_or_page_id TEXT,
	PRIMARY KEY (business_id, platform)
);
`,
	},
	{
		Name: "0002_orders",
		SQL: `
CREATE TABLE IF NOT EXISTS orders (
	id UUID PRIMARY KEY,
	business_id UUID NOT NULL REFERENCES users(id),
	user_id UUID NOT NULL REFERENCES users(id),
	customer_phone_number TEXT NOT NULL,
	delivery_type TEXT CHECK (delivery_type IN ('takeaway','delivery','on_site')),
	status TEXT NOT NULL CHECK (status IN ('cart','accepted','ongoing','ready','completed','cancelled','rejected')),
	request_type TEXT NOT NULL CHECK (request_type IN ('order','scheduled_request')),
	scheduled_for TIMESTAMPTZ,
	subtotal NUMERIC NOT NULL DEFAULT 0,
	delivery_price NUMERIC NOT NULL DEFAULT 0,
	total NUMERIC NOT NULL DEFAULT 0,
	payment_method TEXT,
	payment_status TEXT,
	notes TEXT,
	location_address TEXT,
	language_used TEXT,
	order_source TEXT NOT NULL CHECK (order_source IN ('whatsapp','telegram','instagram','facebook','dashboard')),
	first_response_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	cancelled_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS one_cart_per_owner_customer
	ON orders (business_id, user_id, customer_phone_number)
	WHERE status = 'cart';

CREATE TABLE IF NOT EXISTS order_items (
	id UUID PRIMARY KEY,
	order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	item_id UUID NOT NULL REFERENCES items(id),
	quantity INT NOT NULL CHECK (quantity >= 1),
	price_at_time NUMERIC NOT NULL,
	cost_at_time NUMERIC,
	name_at_time TEXT NOT NULL,
	notes TEXT
);

CREATE TABLE IF NOT EXISTS order_status_history (
	id UUID PRIMARY KEY,
	order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	status TEXT NOT NULL,
	changed_by TEXT NOT NULL,
	changed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`,
	},
	{
		Name: "0003_reservations",
		SQL: `
CREATE TABLE IF NOT EXISTS reservations (
	id UUID PRIMARY KEY,
	business_user_id UUID NOT NULL REFERENCES users(id),
	owner_user_id UUID NOT NULL REFERENCES users(id),
	table_id UUID REFERENCES tables(id),
	customer_phone_number TEXT NOT NULL,
	customer_name TEXT NOT NULL,
	reservation_date DATE NOT NULL,
	reservation_time TIME NOT NULL,
	number_of_guests INT,
	reservation_type TEXT NOT NULL CHECK (reservation_type IN ('table','appointment')),
	status TEXT NOT NULL CHECK (status IN ('confirmed','cancelled','completed','no_show')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS one_confirmed_reservation_per_slot
	ON reservations (table_id, reservation_date, reservation_time)
	WHERE status = 'confirmed';

CREATE TABLE IF NOT EXISTS reservation_items (
	id UUID PRIMARY KEY,
	reservation_id UUID NOT NULL REFERENCES reservations(id) ON DELETE CASCADE,
	item_id UUID NOT NULL REFERENCES items(id),
	quantity INT NOT NULL CHECK (quantity >= 1),
	price_at_time NUMERIC NOT NULL,
	name_at_time TEXT NOT NULL,
	notes TEXT
);
`,
	},
	{
		Name: "0004_sessions_and_support",
		SQL: `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id UUID PRIMARY KEY,
	business_id UUID NOT NULL REFERENCES users(id),
	customer_id TEXT NOT NULL,
	platform TEXT NOT NULL,
	state TEXT NOT NULL CHECK (state IN ('bot_active','human_locked','closed')),
	assigned_employee_id UUID REFERENCES users(id),
	last_activity_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id UUID PRIMARY KEY,
	session_id UUID NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
	sender_type TEXT NOT NULL CHECK (sender_type IN ('customer','bot','employee','system')),
	body TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS support_tickets (
	id UUID PRIMARY KEY,
	business_id UUID NOT NULL REFERENCES users(id),
	customer_id TEXT NOT NULL,
	related_order_id UUID REFERENCES orders(id),
	related_reservation_id UUID REFERENCES reservations(id),
	session_id UUID REFERENCES chat_sessions(id),
	subject TEXT,
	status TEXT NOT NULL CHECK (status IN ('open','in_progress','waiting_customer','closed')),
	priority TEXT NOT NULL CHECK (priority IN ('low','medium','high','urgent')),
	assigned_employee_id UUID REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS support_ticket_messages (
	id UUID PRIMARY KEY,
	ticket_id UUID NOT NULL REFERENCES support_tickets(id) ON DELETE CASCADE,
	sender_type TEXT NOT NULL CHECK (sender_type IN ('customer','bot','employee','system')),
	body TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`,
	},
}

// Apply runs every migration in order inside its own transaction.
// Migrations are written with IF NOT EXISTS guards so Apply is safe to run
// repeatedly.
func (db *DB) Apply(ctx context.Context) error {
	for _, m := range Migrations {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
	}
	return nil
}
