package models

// Site is an observation station submitting products.
type Site struct {
	ID                string `db:"id" json:"id"`
	HumanReadableName string `db:"human_readable_name" json:"humanReadableName"`
	IsTestSite        bool   `db:"is_test_site" json:"isTestSite"`
}

// Product is a processed data product. Model products carry a model type.
type Product struct {
	ID                string `db:"id" json:"id"`
	HumanReadableName string `db:"human_readable_name" json:"humanReadableName"`
	Level             string `db:"level" json:"level"`
	IsModel           bool   `db:"is_model" json:"isModel"`
}

// ModelType ranks forecast models; lower OptimumOrder is preferred.
type ModelType struct {
	ID           string `db:"id" json:"id"`
	OptimumOrder int    `db:"optimum_order" json:"optimumOrder"`
}
