// Command useradmin provisions accounts from the command line, bypassing the
// HTTP surface. It exists for bootstrapping: the first admin cannot be
// created through the API because user creation itself requires users:write.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"flowdeck.io/internal/auth"
	"flowdeck.io/internal/config"
)

func main() {
	log.SetFlags(0)
	var (
		email    = flag.String("email", "", "Account email (required)")
		password = flag.String("password", "", "Account password (required)")
		role     = flag.String("role", "admin", "Role: admin, tenant_user, or readonly")
		tenant   = flag.String("tenant", "", "Tenant id (required for non-admin roles)")
		perms    = flag.String("permissions", "", "Extra permissions, comma-separated")
	)
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("usage: useradmin -email ... -password ... [-role admin] [-tenant ...]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseDSN == "" {
		log.Fatal("missing FLOWDECK_PG_DSN: useradmin writes to the database directly")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	codec, err := auth.NewCodec(cfg.TokenSecret)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}
	svc, err := auth.NewService(auth.NewPGStore(db), codec, auth.NewHasher(cfg.BcryptCost),
		auth.WithAPIKeyBytes(cfg.APIKeyBytes))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	var extra []string
	if *perms != "" {
		for _, p := range strings.Split(*perms, ",") {
			if p = strings.TrimSpace(p); p != "" {
				extra = append(extra, p)
			}
		}
	}

	identity, apiKey, err := svc.CreateUser(ctx, auth.CreateUserParams{
		Email:       *email,
		Password:    *password,
		Role:        auth.Role(*role),
		TenantID:    *tenant,
		Permissions: extra,
	})
	if err != nil {
		log.Fatalf("create user: %v", err)
	}

	fmt.Printf("created %s (%s)\n", identity.Email, identity.ID)
	fmt.Printf("role:        %s\n", identity.Role)
	if identity.TenantID != "" {
		fmt.Printf("tenant:      %s\n", identity.TenantID)
	}
	fmt.Printf("permissions: %s\n", strings.Join(identity.Permissions.Sorted(), ", "))
	// Shown exactly once; the key is not retrievable later.
	fmt.Printf("api key:     %s\n", apiKey)
}
