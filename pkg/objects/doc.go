// Package objects provides ready-made Object definitions and Providers.
//
//   - Memory: a generic Provider keeping values in memory; supports
//     Create, Delete and multiple Resources.
//   - Device (/3): manufacturer, model, serial number, firmware version,
//     battery level, error codes, clock and reboot.
//   - Temperature (/3303): IPSO temperature sensor with min/max tracking.
package objects
