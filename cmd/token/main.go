// Command token issues an operator token pair signed with JWT_SECRET.
//
//	go run ./cmd/token -user alice -role sales_manager
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"dealership-platform/internal/auth"
	"dealership-platform/internal/config"
	"dealership-platform/internal/rbac"
)

func main() {
	user := flag.String("user", "", "operator user id")
	role := flag.String("role", rbac.RoleSalesAgent, "admin, sales_manager, sales_agent or analyst")
	flag.Parse()

	if *user == "" || !rbac.Valid(*role) {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	m, err := auth.NewManager(cfg.Auth)
	if err != nil {
		fmt.Fprintln(os.Stderr, "auth:", err)
		os.Exit(1)
	}
	pair, err := m.IssuePair(time.Now(), *user, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, "issue:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(pair)
}
