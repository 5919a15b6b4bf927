package models

// Tier is a named rank derived from the point balance.
type Tier struct {
	Rank      int    `json:"rank"` // 1 = Newcomer ... 7 = Legendary
	Name      string `json:"name"`
	MinPoints int64  `json:"min_points"` // inclusive lower bound
	Emoji     string `json:"emoji"`
}

// Tiers is ordered from lowest to highest; thresholds strictly increase.
var Tiers = []Tier{
	{Rank: 1, Name: "Newcomer", MinPoints: 0, Emoji: "🌱"},
	{Rank: 2, Name: "Bronze", MinPoints: 100, Emoji: "🥉"},
	{Rank: 3, Name: "Silver", MinPoints: 500, Emoji: "🥈"},
	{Rank: 4, Name: "Gold", MinPoints: 1_000, Emoji: "🥇"},
	{Rank: 5, Name: "Platinum", MinPoints: 5_000, Emoji: "💠"},
	{Rank: 6, Name: "Diamond", MinPoints: 10_000, Emoji: "💎"},
	{Rank: 7, Name: "Legendary", MinPoints: 50_000, Emoji: "👑"},
}
