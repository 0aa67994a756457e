package casing

// Per-entity rename tables. Each is checked for bijection when the package
// loads; adding a backend field that the default rule maps wrongly means
// adding it here, not special-casing it at the call site.

// WhatsAppAccount: the backend reports verification state as connection_status.
var WhatsAppAccount = MustNew(
	Rename{Backend: "connection_status", Client: "status"},
)

// Property: image flags and unit numbers are listed explicitly because the
// property forms submit them verbatim; area_m2 has a digit the default rule
// cannot round-trip.
var Property = MustNew(
	Rename{Backend: "is_cover_image", Client: "isCoverImage"},
	Rename{Backend: "unit_number", Client: "unitNumber"},
	Rename{Backend: "area_m2", Client: "areaSqm"},
)
