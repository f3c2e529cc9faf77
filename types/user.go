package types

// User is the identity bound to a connection when it is established. Guests are not Authenticated and their
// Username is generated.
type User struct {
	Id            string `json:"id"`
	Username      string `json:"username"`
	Role          string `json:"role"`
	Authenticated bool   `json:"authenticated"`
}
