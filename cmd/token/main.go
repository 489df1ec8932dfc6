// Command token mints an API access token for a card owner.
//
//	go run ./cmd/token -user 5f0c8b1e-4a7d-4c3e-9a51-2d6f1b7e8c90 -ttl 720h
//
// Without -user a new owner id is generated. JWT_SECRET is read from the
// environment or .env.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"kyucards-backend/internal/middleware"
)

func main() {
	userFlag := flag.String("user", "", "owner id (uuid); generated when empty")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	flag.Parse()

	godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}

	userID := uuid.New()
	if *userFlag != "" {
		parsed, err := uuid.Parse(*userFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -user: %v\n", err)
			os.Exit(2)
		}
		userID = parsed
	}

	token, err := middleware.NewJWTAuth(secret).GenerateAccessToken(userID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "user_id=%s expires=%s\n", userID, time.Now().Add(*ttl).Format(time.RFC3339))
	fmt.Println(token)
}
