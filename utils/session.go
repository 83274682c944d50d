package utils

import (
	"fmt"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const checkoutSessionKey = "checkout_session_id"

// CheckoutSessionID returns the checkout session id stored in the cookie
// session, minting and saving one on first use.
func CheckoutSessionID(c *gin.Context) (string, error) {
	session := sessions.Default(c)
	if id, ok := session.Get(checkoutSessionKey).(string); ok && id != "" {
		return id, nil
	}

	id := uuid.New().String()
	session.Set(checkoutSessionKey, id)
	if err := session.Save(); err != nil {
		return "", fmt.Errorf("session store save failed: %v", err)
	}
	return id, nil
}

// ResetCheckoutSession drops the checkout session id so the next request starts fresh
func ResetCheckoutSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Delete(checkoutSessionKey)
	return session.Save()
}
