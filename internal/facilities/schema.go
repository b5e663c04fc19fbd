package facilities

import (
	"github.com/danee593/carris-encm/internal/warehouse"
	"github.com/danee593/carris-encm/pkg/encm"
)

// Fields lists the facility record columns in destination order
var Fields = []string{
	// identity
	"id",
	"name",
	// location
	"lat",
	"lon",
	// contact
	"phone",
	"email",
	"url",
	// address
	"address",
	"postal_code",
	"locality",
	"parish_id",
	"parish_name",
	"municipality_id",
	"municipality_name",
	"district_id",
	"district_name",
	"region_id",
	"region_name",
	// opening hours
	"hours_monday",
	"hours_tuesday",
	"hours_wednesday",
	"hours_thursday",
	"hours_friday",
	"hours_saturday",
	"hours_sunday",
	"hours_special",
	// live status
	"stops",
	"currently_waiting",
	"expected_wait_time",
	"active_counters",
	"is_open",
	// capture stamp
	encm.CaptureTimeColumn,
}

// Schema is the destination schema: every field as STRING
func Schema() warehouse.Schema {
	return warehouse.StringSchema(Fields...)
}
