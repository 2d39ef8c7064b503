package models

// Mongo collection names.
const (
	CollectionUsers           = "users"
	CollectionIncomes         = "incomes"
	CollectionMatchingDetails = "matching_bonus_details"
	CollectionMatchingConfigs = "matching_bonus_configs"
	CollectionNotifications   = "notifications"
)
