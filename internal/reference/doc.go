// Package reference holds the closed enumerations a PixelIt device accepts:
// matrix layouts, colour-temperature corrections, light sensor models,
// ESP8266 pin identifiers, button actions, and the firmware factory defaults.
//
// The tables are versionable data. Supporting a new device variant means
// extending a table here; the validation rules pick the change up through
// the Is* membership functions.
package reference
