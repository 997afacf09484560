package model

// Deal is the central CRM opportunity record, snapshotted once per run.
// All values are raw CRM property strings; presentation-layer fallbacks
// are applied at render time, not here.
type Deal struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Amount       string `json:"amount"`
	Stage        string `json:"stage"`
	Pipeline     string `json:"pipeline"`
	CreateDate   string `json:"create_date"`
	CloseDate    string `json:"close_date"`
	OwnerID      string `json:"owner_id"`
	Description  string `json:"description"`
	LastModified string `json:"last_modified"`
}

// Contact is a person associated with a deal.
type Contact struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Company   string `json:"company"`
}

// Company is an organization associated with a deal.
type Company struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Industry string `json:"industry"`
}
