// Package core provides the state of editable tabular forms.
//
// This package holds all domain logic independent of any UI or transport
// layer. It can be used by web handlers, CLI tools, or tests without
// modification.
//
// # Architecture
//
//   - Store: one per table. Owns rows keyed by a primary-key field, the
//     per-field error messages of each row, the add/edit status of each row
//     and the snapshots used to roll back a cancelled edit.
//   - Form: one per form. A registry of stores keyed by table name with an
//     aggregate ValidateAll.
//   - Engine: the validation collaborator. The default TagEngine runs
//     go-playground/validator tags plus optional Check functions.
//
// # Rules
//
// Each field has either a static rule list or a RuleFunc that computes rules
// from the row and the store, which is how cross-field constraints are
// expressed:
//
//	store := core.NewStore("orders", core.WithRules(core.Rules{
//	    "name": core.Static(core.Rule{Tag: "required", Message: "enter a name"}),
//	    "qty":  core.Static(core.Tag("gte=1")),
//	    "note": core.Dynamic(func(ctx context.Context, row core.Row, s *core.Store) ([]core.Rule, error) {
//	        if row["status"] == "rejected" {
//	            return []core.Rule{core.Tag("required")}, nil
//	        }
//	        return nil, nil
//	    }),
//	}))
//
// # Edit Workflow
//
// BeginEdit snapshots a row, BeginAdd inserts one, Save validates and
// commits, CancelOperation rolls back (or drops an added row). See
// store_ops.go for the state machine.
//
// # Background Validation
//
// UpdateRow validates each changed cell in a goroutine. A newer edit of the
// same cell cancels the older validation, and a result is only recorded if
// the cell still holds the value that was validated. Wait blocks until
// background work is done; Close cancels it.
//
// # Notifications
//
// Subscribe returns a channel of Events for every mutation. The row-list and
// row-deleted hooks mirror the callbacks a controlled table input needs.
package core
