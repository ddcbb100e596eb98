package kong

type Upstream struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type Target struct {
	ID     string `json:"id,omitempty"`
	Target string `json:"target"`
	Weight int    `json:"weight,omitempty"`
}

type Service struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Host string `json:"host,omitempty"`
}

type Route struct {
	ID    string   `json:"id,omitempty"`
	Paths []string `json:"paths"`
}

// list is the envelope the admin API wraps collections in.
type list[T any] struct {
	Data []T    `json:"data"`
	Next string `json:"next,omitempty"`
}
