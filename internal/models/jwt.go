package models

// JWTClaims is the subset of token claims this service reads. Signature
// verification happens at the edge proxy; handlers only consume the payload.
type JWTClaims struct {
	JTI               string   `json:"jti"`
	Exp               int64    `json:"exp"`
	IAT               int64    `json:"iat"`
	ISS               string   `json:"iss"`
	AUD               []string `json:"aud"`
	SUB               string   `json:"sub"`
	Scope             string   `json:"scope"`
	EmailVerified     bool     `json:"email_verified"`
	Name              string   `json:"name"`
	PreferredUsername string   `json:"preferred_username"`
	GivenName         string   `json:"given_name"`
	FamilyName        string   `json:"family_name"`
	Email             string   `json:"email"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}
