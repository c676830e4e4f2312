package fishing

var defaultPoles = map[string]Pole{
	"paper":    Paper,
	"wooden":   {ID: 1, Name: "Wooden", Multiplier: 1.1, Price: 250},
	"bamboo":   {ID: 2, Name: "Bamboo", Multiplier: 1.2, Price: 1000},
	"steel":    {ID: 3, Name: "Steel", Multiplier: 1.35, Price: 5000},
	"gold":     {ID: 4, Name: "Gold", Multiplier: 1.5, Price: 20000},
	"diamond":  {ID: 5, Name: "Diamond", Multiplier: 1.75, Price: 75000},
	"mythic":   {ID: 6, Name: "Mythic", Multiplier: 2.0, Price: 250000},
}

// Every fish is common for now.
var defaultFish = map[string]Fish{
	"anchovy":   {ID: 1, Name: "Anchovy", Weight: 10, MinLevel: 0, MaxLevel: 3, Value: 2, Rarity: Common},
	"sardine":   {ID: 2, Name: "Sardine", Weight: 10, MinLevel: 0, MaxLevel: 3, Value: 3, Rarity: Common},
	"carp":      {ID: 3, Name: "Carp", Weight: 8, MinLevel: 0, MaxLevel: 4, Value: 5, Rarity: Common},
	"perch":     {ID: 4, Name: "Perch", Weight: 8, MinLevel: 1, MaxLevel: 5, Value: 6, Rarity: Common},
	"trout":     {ID: 5, Name: "Trout", Weight: 6, MinLevel: 1, MaxLevel: 6, Value: 10, Rarity: Common},
	"bass":      {ID: 6, Name: "Bass", Weight: 6, MinLevel: 2, MaxLevel: 6, Value: 12, Rarity: Common},
	"salmon":    {ID: 7, Name: "Salmon", Weight: 5, MinLevel: 2, MaxLevel: 7, Value: 18, Rarity: Common},
	"catfish":   {ID: 8, Name: "Catfish", Weight: 4, MinLevel: 3, MaxLevel: 8, Value: 25, Rarity: Common},
	"pike":      {ID: 9, Name: "Pike", Weight: 3, MinLevel: 4, MaxLevel: 9, Value: 35, Rarity: Common},
	"tuna":      {ID: 10, Name: "Tuna", Weight: 2, MinLevel: 5, MaxLevel: 10, Value: 60, Rarity: Common},
	"swordfish": {ID: 11, Name: "Swordfish", Weight: 1, MinLevel: 6, MaxLevel: 12, Value: 120, Rarity: Common},
}
