package database

import (
	"database/sql"
	stdlog "log"

	"github.com/entrans/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateUserTable()
	migrateTransportRequestTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'client',
		company_name TEXT,
		auth_provider TEXT DEFAULT 'local',
		is_email_verified BOOLEAN DEFAULT FALSE,
		email_verification_token TEXT,
		email_verification_token_expires_at TIMESTAMP,
		password_reset_token TEXT,
		password_reset_token_expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS transport_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		customer_email TEXT NOT NULL,
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		cargo_description TEXT NOT NULL,
		weight_kg REAL,
		pickup_date TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS offers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id INTEGER NOT NULL,
		reference TEXT NOT NULL UNIQUE,
		price REAL NOT NULL,
		currency TEXT NOT NULL DEFAULT 'EUR',
		valid_until TEXT,
		carrier_notes TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_by INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(request_id) REFERENCES transport_requests(id),
		FOREIGN KEY(created_by) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS blog_posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		excerpt TEXT,
		body TEXT NOT NULL,
		cover_url TEXT,
		published BOOLEAN NOT NULL DEFAULT FALSE,
		author_id INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(author_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS shipments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tracking_code TEXT NOT NULL UNIQUE,
		request_id INTEGER,
		customer_email TEXT NOT NULL,
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'registered',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(request_id) REFERENCES transport_requests(id)
	);

	CREATE TABLE IF NOT EXISTS tracking_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		shipment_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		location TEXT,
		note TEXT,
		occurred_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(shipment_id) REFERENCES shipments(id)
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// tableColumns returns the set of existing column names for a table, or
// nil if the table does not exist yet (in which case CREATE TABLE above
// will produce the final schema and no ALTERs are needed).
func tableColumns(table string) map[string]bool {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("Table does not exist, no migration needed as table will be created.", "table", table)
			} else {
				stdlog.Printf("Table %q does not exist, no migration needed as table will be created.", table)
			}
			return nil
		}
		if logger.L != nil {
			logger.L.Error("Error checking for table", "table", table, "error", err)
		} else {
			stdlog.Printf("Error checking for table %q: %v", table, err)
		}
		return nil
	}

	rows, err := DB.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema", "table", table, "error", err)
		} else {
			stdlog.Printf("Error querying table schema for %q: %v", table, err)
		}
		return nil
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info", "table", table, "error", err)
			} else {
				stdlog.Printf("Error scanning column info for %q: %v", table, err)
			}
			return nil
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info", "table", table, "error", err)
		}
		return nil
	}
	return columnExists
}

func addColumn(table, column, definition string) {
	_, err := DB.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + definition)
	if err != nil {
		logger.L.Error("Error adding column", "table", table, "column", column, "error", err)
	} else {
		logger.L.Info("Added column", "table", table, "column", column)
	}
}

func migrateUserTable() {
	columnExists := tableColumns("users")
	if columnExists == nil {
		return
	}

	if !columnExists["email"] {
		addColumn("users", "email", "TEXT NOT NULL DEFAULT ''")
	}
	if !columnExists["role"] {
		addColumn("users", "role", "TEXT NOT NULL DEFAULT 'client'")
	}
	if !columnExists["company_name"] {
		addColumn("users", "company_name", "TEXT")
	}
	if !columnExists["auth_provider"] {
		addColumn("users", "auth_provider", "TEXT DEFAULT 'local'")
	}
	if !columnExists["is_email_verified"] {
		addColumn("users", "is_email_verified", "BOOLEAN DEFAULT FALSE")
	}
	if !columnExists["email_verification_token"] {
		addColumn("users", "email_verification_token", "TEXT")
	}
	if !columnExists["email_verification_token_expires_at"] {
		addColumn("users", "email_verification_token_expires_at", "TIMESTAMP")
	}
	if !columnExists["password_reset_token"] {
		addColumn("users", "password_reset_token", "TEXT")
	}
	if !columnExists["password_reset_token_expires_at"] {
		addColumn("users", "password_reset_token_expires_at", "TIMESTAMP")
	}
	if !columnExists["created_at"] {
		addColumn("users", "created_at", "TIMESTAMP DEFAULT CURRENT_TIMESTAMP")
	}
	if !columnExists["updated_at"] {
		addColumn("users", "updated_at", "TIMESTAMP DEFAULT CURRENT_TIMESTAMP")
	}
}

func migrateTransportRequestTable() {
	columnExists := tableColumns("transport_requests")
	if columnExists == nil {
		return
	}

	if !columnExists["weight_kg"] {
		addColumn("transport_requests", "weight_kg", "REAL")
	}
	if !columnExists["pickup_date"] {
		addColumn("transport_requests", "pickup_date", "TEXT")
	}
	if !columnExists["customer_email"] {
		addColumn("transport_requests", "customer_email", "TEXT NOT NULL DEFAULT ''")
		_, errUpdate := DB.Exec(`UPDATE transport_requests SET customer_email = (SELECT email FROM users WHERE users.id = transport_requests.user_id) WHERE customer_email = ''`)
		if errUpdate != nil {
			logger.L.Error("Error backfilling customer_email for existing transport requests", "error", errUpdate)
		}
	}
}
