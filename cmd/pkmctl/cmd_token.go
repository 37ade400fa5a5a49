package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pkm-review-api/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

var roleNames = map[string]int{
	"student":  middleware.RoleStudent,
	"reviewer": middleware.RoleReviewer,
	"admin":    middleware.RoleAdmin,
}

func runToken(cmd *cobra.Command, args []string) error {
	userID, err := strconv.Atoi(args[0])
	if err != nil || userID <= 0 {
		return fmt.Errorf("%q is not a user id", args[0])
	}
	roleID, ok := roleNames[strings.ToLower(tokenRole)]
	if !ok {
		return fmt.Errorf("unknown role %q", tokenRole)
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}

	now := time.Now()
	token, err := middleware.IssueToken(secret, userID, roleID, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(tokenTTLHrs) * time.Hour)),
		Subject:   strconv.Itoa(userID),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
