package filter

/*
Env is what a message filter expression can refer to. Once deployed, renaming a field breaks configured
expressions.
*/

type User struct {
	Id            string
	Username      string
	Role          string
	Authenticated bool
}

type Env struct {
	User
	Room    string
	Message string
	Length  int
}
