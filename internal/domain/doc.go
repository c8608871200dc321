// Package domain models the Tlaxcala climate-action survey data.
//
// # Data Source
//
// Records originate from the state survey platform, which exposes every
// form submission ("actividad") as flat JSON. A submission carries the
// respondent's email, the owning dependency, timestamps, a moderation
// status, and an unordered list of answers keyed by the verbatim question
// title shown on the form. Only submissions with status "approved" are
// published on the map.
//
// # Aggregation Model
//
// Dependencies report the same program or project more than once, one
// submission per site where it operates. Submissions are therefore grouped
// into a Project by a composite key of email, project name, and objective —
// deliberately excluding timestamps so repeated submissions merge instead of
// duplicating the project. Each submission contributes one Location, kept in
// arrival order.
//
// # Geography Conventions
//
// A location is either "Local" (a specific site with coordinates) or
// "Estatal" (the program covers the whole state). Local coordinates are
// validated against the Tlaxcala bounding box; out-of-range or missing
// coordinates are replaced with the state-center fallback centroid and
// flagged, so every location can always be placed on the map. Estatal
// locations always use the centroid. Any other location type is dropped.
//
// All derivations in this package are pure: one malformed submission is
// skipped and logged, never failing the batch, and re-running any function
// over the same input produces the same output.
package domain
