package models

// Dataset names one table of the pipeline and the files it moves between.
type Dataset struct {
	Name       string
	InputFile  string
	OutputFile string
}

var (
	ProductsDataset = Dataset{
		Name:       "products",
		InputFile:  "olist_products_dataset_cleaned.csv",
		OutputFile: "olist_products_dataset_final.csv",
	}
	OrdersDataset = Dataset{
		Name:       "orders",
		InputFile:  "olist_orders_dataset_cleaned.csv",
		OutputFile: "olist_orders_dataset_final.csv",
	}
	ReviewsDataset = Dataset{
		Name:       "reviews",
		InputFile:  "olist_order_reviews_dataset_cleaned.csv",
		OutputFile: "olist_order_reviews_dataset_final.csv",
	}
)
