package entity

// BotID - the identity the bot opponent plays under.
const BotID = "bot"

// PlayerRef - who is sitting on one side of a game.
type PlayerRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Connected   bool   `json:"connected"`
}

func NewBotRef() PlayerRef {
	return PlayerRef{ID: BotID, DisplayName: "Bot", Connected: true}
}

func (that PlayerRef) IsBot() bool {
	return that.ID == BotID
}

func (that PlayerRef) IsGuest() bool {
	return that.ID == "" || that.DisplayName == "" || that.DisplayName == "Guest"
}
