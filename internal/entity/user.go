package entity

type User struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}
