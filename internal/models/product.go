package models

// Product columns filled with their median. The names keep the dataset's spelling.
const (
	ProductNameLength        = "product_name_lenght"
	ProductDescriptionLength = "product_description_lenght"
	ProductPhotosQty         = "product_photos_qty"
)

// ProductMeasureColumns lists the numeric product attributes that are median-filled.
var ProductMeasureColumns = []string{
	ProductNameLength,
	ProductDescriptionLength,
	ProductPhotosQty,
}
