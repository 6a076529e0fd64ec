package domain

// SystemAgentUsername is the fallback agent used when an upload names an unknown agent.
const SystemAgentUsername = "system"

// Shop is a point of sale.
type Shop struct {
	Designation string
	ID          int64
}

// Agent is a person operating a shop.
type Agent struct {
	ShopID   *int64
	Username string
	FullName string
	ID       int64
}

// Client is a customer on whose behalf an operation is made.
type Client struct {
	Name  string
	Phone string
	ID    int64
}

// ReferenceKeys carries the natural keys and device-local ids a client sends
// alongside an operation. Natural keys win; ids are a fallback.
type ReferenceKeys struct {
	ClientName          string
	AgentUsername       string
	SourceShopName      string
	DestinationShopName string
	ClientID            int64
	AgentID             int64
	SourceShopID        int64
	DestinationShopID   int64
}
