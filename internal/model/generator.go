package model

// GenerateResponse represents a password generation response.
type GenerateResponse struct {
	Password string `json:"password"`
	Length   int    `json:"length"`
}
