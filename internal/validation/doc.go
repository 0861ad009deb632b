// Package validation checks PixelIt configuration edits before they are
// sent to the device.
//
// Field rules are pure predicates over a single value. Composite rules,
// such as pin uniqueness, see the whole configuration through an immutable
// View built from the confirmed snapshot with the candidate changes merged
// in. Nothing in this package mutates state.
//
//	v := validation.New()
//	if err := v.Validate(confirmed, changes); err != nil {
//	    var verr *validation.Error
//	    if errors.As(err, &verr) {
//	        // verr.Fields maps config keys to messages
//	    }
//	}
package validation
