package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

// Standalone connectivity check for the refill ledger. Connects with the
// plain postgres driver (no ORM) so it can be run against a fresh database
// before the server ever starts.
func main() {
	dsn := flag.String("dsn", os.Getenv("DATABASE_DSN"), "postgres DSN (defaults to DATABASE_DSN)")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("❌ No DSN provided: set DATABASE_DSN or pass -dsn")
	}

	fmt.Println("🔍 Verifying refill ledger database connection...")

	sqlDB, err := sql.Open("postgres", *dsn)
	if err != nil {
		log.Fatalf("❌ Failed to open connection: %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("❌ Ping failed: %v", err)
	}

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("❌ Failed to get database name: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	tables := []string{"blockchains", "wallets", "assets", "refill_transactions"}
	missing := 0
	for _, table := range tables {
		var exists bool
		err := sqlDB.QueryRow(`
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil {
			log.Fatalf("❌ Failed to query table %s: %v", table, err)
		}
		if exists {
			fmt.Printf("✅ Table %s exists\n", table)
		} else {
			fmt.Printf("⚠️ Table %s missing (created by migration on first server start)\n", table)
			missing++
		}
	}

	// The primary key on refill_request_id is what makes duplicate request
	// ids collide; verify it survived any manual schema edits.
	var pkColumn sql.NullString
	err = sqlDB.QueryRow(`
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		WHERE tc.table_name = 'refill_transactions' AND tc.constraint_type = 'PRIMARY KEY'
	`).Scan(&pkColumn)
	if err == nil && pkColumn.Valid {
		if pkColumn.String == "refill_request_id" {
			fmt.Println("✅ refill_transactions primary key is refill_request_id")
		} else {
			fmt.Printf("❌ refill_transactions primary key is %s, expected refill_request_id\n", pkColumn.String)
			os.Exit(1)
		}
	}

	if missing == 0 {
		fmt.Println("✅ Database verification passed")
	} else {
		fmt.Printf("⚠️ Database reachable, %d table(s) pending migration\n", missing)
	}
}
