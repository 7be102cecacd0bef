package domain

// Department is a named organizational unit with a short code and an address.
// An ID of zero means the record has not been persisted yet.
type Department struct {
	ID      int64  `json:"departmentId"`
	Name    string `json:"departmentName"`
	Code    string `json:"departmentCode"`
	Address string `json:"departmentAddress"`
}
