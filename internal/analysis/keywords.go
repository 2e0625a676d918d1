package analysis

// Keyword tables. Every entry is lowercase; input text is lowercased before
// substring matching.

var positiveKeywords = []string{
	"interested", "love", "perfect", "excellent", "amazing", "great", "wonderful",
	"excited", "looking forward", "impressive", "beautiful", "fantastic",
}

var negativeKeywords = []string{
	"expensive", "too much", "not sure", "concerned", "worried", "hesitant",
	"maybe later", "thinking about it", "budget", "afford",
}

// Intent is a purchase signal detected in free text.
type Intent string

const (
	IntentTestDrive     Intent = "test_drive"
	IntentPricing       Intent = "pricing"
	IntentAppointment   Intent = "appointment"
	IntentPurchaseReady Intent = "purchase_ready"
	IntentComparison    Intent = "comparison"
	IntentFeatures      Intent = "features"
	IntentTradeIn       Intent = "trade_in"
	IntentService       Intent = "service"
)

type intentRule struct {
	intent   Intent
	keywords []string
}

// intentTable is evaluated in order; Intents preserves this order.
var intentTable = []intentRule{
	{IntentTestDrive, []string{
		"test drive", "drive the car", "try it out", "test it", "take it for a spin",
		"experience the vehicle", "feel the car",
	}},
	{IntentPricing, []string{
		"price", "cost", "how much", "payment", "financing", "afford",
		"monthly payment", "down payment", "total cost", "pricing",
	}},
	{IntentAppointment, []string{
		"schedule", "appointment", "visit", "come by", "showroom",
		"meet", "when can i", "availability",
	}},
	{IntentPurchaseReady, []string{
		"buy now", "ready to purchase", "want to buy", "make a deal",
		"sign the papers", "close the deal", "ready to proceed",
	}},
	{IntentComparison, []string{
		"compare", "difference between", "versus", "vs", "which is better",
		"alternative", "other options",
	}},
	{IntentFeatures, []string{
		"features", "specifications", "specs", "what does it have",
		"include", "comes with", "standard", "options",
	}},
	{IntentTradeIn, []string{
		"trade in", "trade-in", "current car", "sell my car",
		"exchange", "part exchange",
	}},
	{IntentService, []string{
		"maintenance", "service", "warranty", "repair",
		"servicing", "after sales",
	}},
}

var brandKeywords = []string{
	"rolls-royce", "bentley", "ferrari", "lamborghini", "porsche",
	"maserati", "aston martin", "mclaren", "bugatti", "mercedes", "bmw",
}

var modelKeywords = []string{
	"phantom", "cullinan", "ghost", "continental", "488", "aventador",
	"huracan", "911", "cayenne", "panamera", "db11", "vantage",
}

var featureKeywords = []string{
	"convertible", "suv", "sedan", "coupe", "electric", "hybrid",
	"all-wheel drive", "awd", "v8", "v12", "turbo", "supercharged",
}

// Lead tier rules, checked hot then warm then cold.
var (
	hotTierKeywords = []string{
		"buy now", "ready to purchase", "schedule test drive", "phantom", "cullinan",
		"bentley", "ferrari", "urgent", "book appointment", "quote needed",
	}
	warmTierKeywords = []string{
		"interested", "more information", "pricing", "financing", "options",
		"compare models", "availability",
	}
	coldTierKeywords = []string{
		"just looking", "researching", "future", "maybe later", "not serious",
	}
)
