package models

import "time"

var sampleReviewDate = time.Date(2024, time.May, 23, 8, 56, 21, 618000000, time.UTC)

// ApplySampleDetails fills every field a user cannot supply through the product
// form with the fixed sample values. User supplied fields and Meta timestamps are
// left untouched.
func ApplySampleDetails(p *Product) {
	p.DiscountPercentage = 7.17
	p.Rating = 4.94
	p.Tags = []string{"beauty", "mascara"}
	p.Brand = "Essence"
	p.SKU = "RCH45Q1A"
	p.Weight = 2
	p.Dimensions = Dimensions{Width: 23.17, Height: 14.43, Depth: 28.01}
	p.WarrantyInformation = "1 month warranty"
	p.ShippingInformation = "Ships in 1 month"
	p.AvailabilityStatus = "Low Stock"
	p.Reviews = []Review{
		{
			Rating:        2,
			Comment:       "Very unhappy with my purchase!",
			Date:          sampleReviewDate,
			ReviewerName:  "John Doe",
			ReviewerEmail: "john.doe@x.dummyjson.com",
		},
		{
			Rating:        2,
			Comment:       "Not as described!",
			Date:          sampleReviewDate,
			ReviewerName:  "Nolan Gonzalez",
			ReviewerEmail: "nolan.gonzalez@x.dummyjson.com",
		},
		{
			Rating:        5,
			Comment:       "Very satisfied!",
			Date:          sampleReviewDate,
			ReviewerName:  "Scarlett Wright",
			ReviewerEmail: "scarlett.wright@x.dummyjson.com",
		},
	}
	p.ReturnPolicy = "30 days return policy"
	p.MinimumOrderQuantity = 24
	p.Meta.Barcode = "9164035109868"
	p.Meta.QRCode = "https://assets.dummyjson.com/public/qr-code.png"
	p.Images = []string{
		"https://cdn.dummyjson.com/products/images/beauty/Essence%20Mascara%20Lash%20Princess/1.png",
	}
}
