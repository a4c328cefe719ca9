package common

// CurrentVersion is the version stamped into builds of fsapi.
var CurrentVersion = Version{
	Major:  1,
	Minor:  0,
	Patch:  0,
	Suffix: "dev",
}
