package tools

// TimeInput defines arguments for the getTime capability.
type TimeInput struct {
	Timezone string `json:"timezone,omitempty" jsonschema_description:"IANA timezone name the user asked about (e.g. 'Europe/Berlin')"`
	Format   string `json:"format,omitempty" jsonschema_description:"Output detail level: 'full' (default) or 'short'"`
}

// WeatherInput defines arguments for the getWeather capability.
type WeatherInput struct {
	City string `json:"city" jsonschema_description:"The city to get current weather for"`
}

// Memory actions accepted by MemoryInput.Action.
const (
	MemoryActionStore    = "store"
	MemoryActionRetrieve = "retrieve"
	MemoryActionSearch   = "search"
	MemoryActionList     = "list"
	MemoryActionDelete   = "delete"
)

// MemoryInput defines arguments for the memory capability.
type MemoryInput struct {
	Action     string `json:"action" jsonschema:"enum=store,enum=retrieve,enum=search,enum=list,enum=delete" jsonschema_description:"The memory operation to perform"`
	Key        string `json:"key,omitempty" jsonschema_description:"Memory key (required for store, retrieve, delete)"`
	Value      string `json:"value,omitempty" jsonschema_description:"Memory value (required for store)"`
	SearchTerm string `json:"searchTerm,omitempty" jsonschema_description:"Term to search for (required for search)"`
}
