// Package panel is the config-editing workflow between operators and the
// device.
//
// A change set is validated against the effective config (pending proposal,
// else confirmed snapshot, else firmware defaults), recorded as a proposal
// in the store, then submitted as a full snapshot to the device. The store
// only treats the edit as applied once the device echoes its config.
//
// Validation failures never reach the store or the device.
package panel
