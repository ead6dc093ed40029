package webserver

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type Auth struct {
	jwtSecret []byte
	passHash  string
}

func NewAuth(secret []byte, passHash string) Auth {
	return Auth{jwtSecret: secret, passHash: passHash}
}

func (a Auth) Login(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required,min=8,max=128"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	if a.passHash == "" {
		log.Printf("Login rejected: no operator password configured")
		c.JSON(http.StatusForbidden, gin.H{"err": "operator login not configured"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.passHash), []byte(req.Password)); err != nil {
		log.Printf("Failed login from IP %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"err": "bad credentials"})
		return
	}

	claims := jwt.MapClaims{
		"sub": "operator",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(12 * time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to issue token"})
		return
	}

	log.Printf("Operator login from IP %s", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"token": token})
}
