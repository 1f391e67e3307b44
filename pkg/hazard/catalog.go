package hazard

import (
	"fmt"
	"sort"
)

// Catalogued hazard ids.
const (
	AirPoisoning               ID = "air-poisoning"
	Asphyxia                   ID = "asphyxia"
	AudioVideoDisplay          ID = "audio-video-display"
	AudioVideoRecordAndStore   ID = "audio-video-record-and-store"
	ElectricEnergyConsumption  ID = "electric-energy-consumption"
	Explosion                  ID = "explosion"
	FireHazard                 ID = "fire-hazard"
	GasConsumption             ID = "gas-consumption"
	LogEnergyConsumption       ID = "log-energy-consumption"
	LogUsageTime               ID = "log-usage-time"
	PaySubscriptionFee         ID = "pay-subscription-fee"
	PowerOutage                ID = "power-outage"
	PowerSurge                 ID = "power-surge"
	RecordIssuedCommands       ID = "record-issued-commands"
	RecordUserPreferences      ID = "record-user-preferences"
	SpendMoney                 ID = "spend-money"
	SpoiledFood                ID = "spoiled-food"
	TakeDeviceScreenshots      ID = "take-device-screenshots"
	TakePictures               ID = "take-pictures"
	UnauthorisedPhysicalAccess ID = "unauthorised-physical-access"
	WaterConsumption           ID = "water-consumption"
	WaterFlooding              ID = "water-flooding"
)

var catalog = map[ID]Hazard{
	AirPoisoning:               {AirPoisoning, Safety, 9, "The execution may release toxic gases."},
	Asphyxia:                   {Asphyxia, Safety, 9, "The execution may cause oxygen deficiency by gaseous substances."},
	AudioVideoDisplay:          {AudioVideoDisplay, Privacy, 3, "The execution authorises the app to display a video with audio coming from the device."},
	AudioVideoRecordAndStore:   {AudioVideoRecordAndStore, Privacy, 8, "The execution authorises the app to record and save a video with audio on persistent storage."},
	ElectricEnergyConsumption:  {ElectricEnergyConsumption, Financial, 4, "The execution enables a device that consumes electricity."},
	Explosion:                  {Explosion, Safety, 10, "The execution may cause an explosion."},
	FireHazard:                 {FireHazard, Safety, 8, "The execution may cause fire."},
	GasConsumption:             {GasConsumption, Financial, 4, "The execution enables a device that consumes gas."},
	LogEnergyConsumption:       {LogEnergyConsumption, Privacy, 2, "The execution authorises the app to get and save information about the app's energy impact on the device."},
	LogUsageTime:               {LogUsageTime, Privacy, 2, "The execution authorises the app to get and save information about the app's duration of use."},
	PaySubscriptionFee:         {PaySubscriptionFee, Financial, 6, "The execution authorises the app to use payment information and make a periodic payment."},
	PowerOutage:                {PowerOutage, Safety, 6, "The execution may cause an interruption in the supply of electricity."},
	PowerSurge:                 {PowerSurge, Safety, 7, "The execution may lead to exposure to high voltages."},
	RecordIssuedCommands:       {RecordIssuedCommands, Privacy, 4, "The execution authorises the app to get and save user inputs."},
	RecordUserPreferences:      {RecordUserPreferences, Privacy, 4, "The execution authorises the app to get and save information about the user's preferences."},
	SpendMoney:                 {SpendMoney, Financial, 7, "The execution authorises the app to use payment information and make a payment transaction."},
	SpoiledFood:                {SpoiledFood, Safety, 5, "The execution may lead rotten food to be eaten."},
	TakeDeviceScreenshots:      {TakeDeviceScreenshots, Privacy, 6, "The execution authorises the app to read the display output and take screenshots of it."},
	TakePictures:               {TakePictures, Privacy, 7, "The execution authorises the app to use a camera and take photos."},
	UnauthorisedPhysicalAccess: {UnauthorisedPhysicalAccess, Safety, 8, "The execution disables a protection mechanism, therefore unauthorised individuals may physically enter home."},
	WaterConsumption:           {WaterConsumption, Financial, 3, "The execution enables a device that consumes water."},
	WaterFlooding:              {WaterFlooding, Safety, 7, "The execution allows water usage which may lead to flood."},
}

// Lookup returns the catalogued hazard for id.
func Lookup(id ID) (Hazard, error) {
	h, ok := catalog[id]
	if !ok {
		return Hazard{}, fmt.Errorf("%w: %q", ErrUnknownHazard, id)
	}
	return h, nil
}

// MustLookup is like Lookup but panics for unknown ids.
func MustLookup(id ID) Hazard {
	h, err := Lookup(id)
	if err != nil {
		panic(err)
	}
	return h
}

// Of builds a set from catalogued ids.
func Of(ids ...ID) (Set, error) {
	hs := make([]Hazard, 0, len(ids))
	for _, id := range ids {
		h, err := Lookup(id)
		if err != nil {
			return Set{}, err
		}
		hs = append(hs, h)
	}
	return NewSet(hs...)
}

// Catalog returns every catalogued hazard sorted by id.
func Catalog() []Hazard {
	out := make([]Hazard, 0, len(catalog))
	for _, h := range catalog {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MustOf is like Of but panics for unknown ids.
func MustOf(ids ...ID) Set {
	s, err := Of(ids...)
	if err != nil {
		panic(err)
	}
	return s
}
