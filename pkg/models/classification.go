package models

// Classification is the ICP verdict for one channel. The zero value is the
// default verdict used whenever classification fails.
type Classification struct {
	IsICP        bool        `json:"is_icp" bson:"is_icp"`
	Why          string      `json:"why" bson:"why"`
	HighTicket   bool        `json:"high_ticket" bson:"high_ticket"`
	PotentialICP bool        `json:"potential_icp" bson:"potential_icp"`
	Contact      ContactInfo `json:"-" bson:"-"`
}
