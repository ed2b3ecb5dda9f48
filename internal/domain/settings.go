package domain

// Settings are the user's preferences.
type Settings struct {
	DarkMode bool   `json:"darkMode"`
	Country  string `json:"country"`
}
