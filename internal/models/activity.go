package models

import "fmt"

// DefaultLocation is shown for activities that carry no position at all.
const DefaultLocation = "Munich, Germany"

// Activity is a venue or event from the seeded catalogue (MongoDB).
type Activity struct {
	ID          string   `json:"id" bson:"_id"`
	Name        string   `json:"name" bson:"name"`
	Description string   `json:"description" bson:"description"`
	Category    string   `json:"category" bson:"category"`
	ImageURL    string   `json:"imageUrl" bson:"image_url"`
	Location    string   `json:"location" bson:"location"`
	Lat         *float64 `json:"lat,omitempty" bson:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty" bson:"lng,omitempty"`
	Rating      float64  `json:"rating" bson:"rating"`
	Price       string   `json:"price,omitempty" bson:"price,omitempty"`
	Time        string   `json:"time,omitempty" bson:"time,omitempty"`
	Date        string   `json:"date,omitempty" bson:"date,omitempty"`
}

// Normalized fills Location from the coordinates, or the default city when there are none.
func (a Activity) Normalized() Activity {
	if a.Location != "" {
		return a
	}
	if a.Lat != nil && a.Lng != nil {
		a.Location = fmt.Sprintf("%.2f, %.2f", *a.Lat, *a.Lng)
		return a
	}
	a.Location = DefaultLocation
	return a
}

// NearbyActivity is an activity with its distance from the caller
type NearbyActivity struct {
	Activity
	DistanceKm float64 `json:"distanceKm"`
	Distance   string  `json:"distance"`
}

// ShareActivityRequest defines the request body for sharing an activity to a group
type ShareActivityRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

// SeedActivities is the catalogue written on first start.
func SeedActivities() []Activity {
	return []Activity{
		{
			ID:          "1",
			Name:        "Eisbachwelle Surfing",
			Description: "Watch or join the surfers at the world-famous stationary wave in the English Garden.",
			Category:    "Sports",
			ImageURL:    "https://images.unsplash.com/photo-1610448721566-473ce9da81d3?q=80&w=800&auto=format&fit=crop",
			Location:    "48.1432, 11.5878",
			Rating:      4.8,
		},
		{
			ID:          "2",
			Name:        "Viktualienmarkt Breakfast",
			Description: "Traditional Bavarian breakfast with Weisswurst and pretzels at Munich's most famous market.",
			Category:    "Food",
			ImageURL:    "https://images.unsplash.com/photo-1595113316349-9fa4ee24f884?q=80&w=800&auto=format&fit=crop",
			Location:    "48.1351, 11.5761",
			Rating:      4.7,
		},
		{
			ID:          "3",
			Name:        "Deutsches Museum",
			Description: "Explore the world's largest museum of science and technology.",
			Category:    "Culture",
			ImageURL:    "https://images.unsplash.com/photo-1629124403306-69666012480a?q=80&w=800&auto=format&fit=crop",
			Location:    "48.1301, 11.5833",
			Rating:      4.9,
		},
		{
			ID:          "4",
			Name:        "Beer Garden at Hirschgarten",
			Description: "Enjoy a cold Radler at the world's largest beer garden.",
			Category:    "Nightlife",
			ImageURL:    "https://images.unsplash.com/photo-1571261314480-1a74d20473ce?q=80&w=800&auto=format&fit=crop",
			Location:    "48.1478, 11.5126",
			Rating:      4.6,
		},
		{
			ID:          "5",
			Name:        "Sunset at Olympiapark",
			Description: "Climb the Olympic Hill for a breathtaking view of the city and the Alps.",
			Category:    "Nature",
			ImageURL:    "https://images.unsplash.com/photo-1571261313768-47209930f9bc?q=80&w=800&auto=format&fit=crop",
			Location:    "48.1731, 11.5539",
			Rating:      4.8,
		},
	}
}
