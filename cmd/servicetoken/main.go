// Command servicetoken mints an x-service-token for the external ordering system.
//
//	go run ./cmd/servicetoken -shop <shop uuid> [-ttl 720h]
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/yuditriaji/restopos-backend/pkg/config"
	"github.com/yuditriaji/restopos-backend/pkg/token"
)

func main() {
	shop := flag.String("shop", "", "shop id the token is bound to (required)")
	ttl := flag.Duration("ttl", 0, "token lifetime; 0 never expires")
	flag.Parse()

	if _, err := uuid.Parse(*shop); err != nil {
		log.Fatalf("invalid -shop %q: %v", *shop, err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	tokens := token.NewManager(cfg.Auth.JWTSecret, cfg.Auth.ServiceTokenSecret, cfg.Auth.TokenTTL)
	raw, err := tokens.IssueService(token.OrderingSystem, *shop, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println(raw)
	if *ttl > 0 {
		log.Printf("expires at %s", time.Now().Add(*ttl).UTC().Format(time.RFC3339))
	}
}
