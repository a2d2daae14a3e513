// Package vehicle looks up a registration with the vehicle data provider and
// sorts the vehicle into the price category the car wash charges by.
//
// Vans are banded by length (Van 1 up to 4.8m, Van 2/3 above). Everything
// else is banded by bounding-box volume into Volume 1 to Volume 4.
package vehicle
