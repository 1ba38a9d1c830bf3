package scenario

// Seed returns the practice scenarios offered to learners. Labels are shown verbatim
// in the client and passed back unchanged on every exchange.
func Seed() []string {
	return []string{
		"自由對話 (Free Conversation)",
		"餐廳點餐 (At the Restaurant)",
		"認識新朋友 (Meeting New People)",
		"去香港旅行 (Traveling in Hong Kong)",
		"購物閒聊 (Shopping Small Talk)",
		"工作寒暄 (Workplace Small Talk)",
	}
}

// Default is the label used when a request carries no scenario.
const Default = "自由對話 (Free Conversation)"
