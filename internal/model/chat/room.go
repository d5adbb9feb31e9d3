package chat

// Room is the broadcast view of a room: catalog data plus current members in
// join order.
type Room struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Users       []string `json:"users"`
}

// Seed provides the static room catalog, in display order.
func Seed() []Room {
	return []Room{
		{ID: "general", Name: "General", Description: "General chat room"},
		{ID: "random", Name: "Random", Description: "Random topics"},
		{ID: "help", Name: "Help", Description: "Get help here"},
	}
}
