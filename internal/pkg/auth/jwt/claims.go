package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims issued to authenticated racers.
// It embeds the standard claims required for validity checks plus the custom
// fields needed to resolve the token holder inside the race system.
type Payload struct {
	// StandardClaims embeds the standard JWT fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer).
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the unique identifier of the account the token was issued to.
	UserID string `json:"userId"`

	// Username is the cached display name, carried so real-time handlers can
	// label participants without a database round trip.
	Username string `json:"username"`
}
