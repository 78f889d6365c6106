package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceClaims mirrors the claims the refill API expects from the balance
// monitor.
type ServiceClaims struct {
	Service string `json:"service"`
	jwt.RegisteredClaims
}

// Issues a service token for the balance monitor, for local testing and
// deployment bootstrap.
func main() {
	secret := flag.String("secret", os.Getenv("REFILL_JWT_SECRET"), "JWT signing secret (defaults to REFILL_JWT_SECRET)")
	service := flag.String("service", "balance-monitor", "service name claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "❌ No secret provided: set REFILL_JWT_SECRET or pass -secret")
		os.Exit(1)
	}

	now := time.Now()
	claims := ServiceClaims{
		Service: *service,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "refill-backend",
			Subject:   *service,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(*secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("============================================================")
	fmt.Printf("Service:   %s\n", *service)
	fmt.Printf("Expires:   %s\n", now.Add(*ttl).Format(time.RFC3339))
	fmt.Println("============================================================")
	fmt.Println(tokenString)
}
