package pool

import "fmt"

// Status is a read-only snapshot of pool counters.
type Status struct {
	Name         string `json:"name"`
	GrowthFactor int    `json:"growthFactor"`
	Capacity     int    `json:"capacity"`
	Free         int    `json:"free"`
	Allocated    int    `json:"allocated"`
	Leased       int    `json:"leased"`
	Closed       bool   `json:"closed"`
}

// String renders the diagnostic line printed by the simulation driver.
func (s Status) String() string {
	return fmt.Sprintf(
		"Object Pool Status: Growth Factor = %d; Capacity = %d; Current Free Objects Number = %d; Current Total Allocated Number = %d; ",
		s.GrowthFactor, s.Capacity, s.Free, s.Allocated,
	)
}
