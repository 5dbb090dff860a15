package vent

import "sync"

// Airflow mode names and their wire codes.
const (
	ModeReset  = "reset"
	ModeNormal = "normal"
	ModeBoost  = "boost"
	ModePurge  = "purge"
)

// AirflowModes maps mode names to the codes the unit expects.
var AirflowModes = map[string]int{
	ModeReset:  0,
	ModeNormal: 2,
	ModeBoost:  3,
	ModePurge:  4,
}

// ValidDurations are the manual airflow durations (minutes) the unit accepts.
var ValidDurations = []int{0, 15, 30, 45, 60}

// ExtractWeight is the weighting of the extract temperature when deriving
// the supply air temperature.
const ExtractWeight = 0.9

// Device is the state model for one VentAxia unit. It is created once by the
// processor and mutated in place as messages arrive; it is never replaced.
// Mutation happens only on the sequential receive path, reads take snapshots.
type Device struct {
	mu sync.RWMutex

	dname string

	supRPM int
	exhRPM int
	pwr    float64

	asAf   int // active airflow mode code
	arMin  int // manual airflow duration, minutes
	asRsec int // manual airflow remaining, seconds

	extractTempC float64
	outdoorTempC float64
	cmAfSup      int
	cmAfExh      int
	exrRH        int
	itkRH        int

	serviceMonths int
	filterMonths  int

	sbpMode int
	sbpAf   int
	sbpIt   float64
	sbpOt   float64

	tsRaw     map[string]uint32
	tsDecoded map[string]Schedule
	shrsRaw   uint32
	shrs      Schedule
}

func newDevice() *Device {
	return &Device{
		tsRaw:     make(map[string]uint32),
		tsDecoded: make(map[string]Schedule),
	}
}

// apply merges one inbound message into the model. Unknown keys are ignored.
func (d *Device) apply(msg Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if v, ok := msg.String("dname"); ok {
		d.dname = v
	}
	if v, ok := msg.Int("sup_rpm"); ok {
		d.supRPM = v
	}
	if v, ok := msg.Int("exh_rpm"); ok {
		d.exhRPM = v
	}
	if v, ok := msg.Float("pwr"); ok {
		d.pwr = v
	}
	if v, ok := msg.Int("as_af"); ok {
		d.asAf = v
	}
	if v, ok := msg.Int("ar_min"); ok {
		d.arMin = v
	}
	if v, ok := msg.Int("as_rsec"); ok {
		d.asRsec = v
	}
	if v, ok := msg.Float("extract_temp_c"); ok {
		d.extractTempC = v
	}
	if v, ok := msg.Float("outdoor_temp_c"); ok {
		d.outdoorTempC = v
	}
	if v, ok := msg.Int("cm_af_sup"); ok {
		d.cmAfSup = v
	}
	if v, ok := msg.Int("cm_af_exh"); ok {
		d.cmAfExh = v
	}
	if v, ok := msg.Int("exr_rh"); ok {
		d.exrRH = v
	}
	if v, ok := msg.Int("itk_rh"); ok {
		d.itkRH = v
	}
	if v, ok := msg.Int("service_months"); ok {
		d.serviceMonths = v
	}
	if v, ok := msg.Int("filter_months"); ok {
		d.filterMonths = v
	}
	if v, ok := msg.Int("sbp_mode"); ok {
		d.sbpMode = v
	}
	if v, ok := msg.Int("sbp_af"); ok {
		d.sbpAf = v
	}
	if v, ok := msg.Float("sbp_it"); ok {
		d.sbpIt = v
	}
	if v, ok := msg.Float("sbp_ot"); ok {
		d.sbpOt = v
	}

	for _, name := range scheduleSlots {
		if v, ok := msg.Int(name); ok {
			d.setScheduleLocked(name, uint32(v))
		}
	}
}

// setScheduleLocked stores a raw schedule field and its decoded form.
// Caller holds d.mu.
func (d *Device) setScheduleLocked(name string, raw uint32) {
	if name == SilentHoursSlot {
		d.shrsRaw = raw
		d.shrs = DecodeScheduleField(name, raw)
		return
	}
	d.tsRaw[name] = raw
	d.tsDecoded[name] = DecodeScheduleField(name, raw)
}

// SetSchedule stores a schedule update made locally, keeping raw and decoded
// forms in step the way inbound updates do.
func (d *Device) SetSchedule(name string, raw uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setScheduleLocked(name, raw)
}

// Snapshot is a point-in-time copy of the device state, safe to read from
// any goroutine.
type Snapshot struct {
	Name string `json:"name"`

	SupplyRPM  int     `json:"supply_rpm"`
	ExhaustRPM int     `json:"exhaust_rpm"`
	PowerW     float64 `json:"power_w"`

	AirflowModeCode  int    `json:"airflow_mode_code"`
	AirflowMode      string `json:"airflow_mode"`
	DurationMinutes  int    `json:"duration_minutes"`
	RemainingSeconds int    `json:"remaining_seconds"`

	IndoorTempC  float64 `json:"indoor_temp_c"`
	OutdoorTempC float64 `json:"outdoor_temp_c"`
	SupplyTempC  float64 `json:"supply_temp_c"`

	SupplyAirflow    int     `json:"supply_airflow_ls"`
	ExhaustAirflow   int     `json:"exhaust_airflow_ls"`
	ExternalRH       int     `json:"external_humidity"`
	InternalRH       int     `json:"internal_humidity"`
	ServiceMonths    int     `json:"service_months"`
	FilterMonths     int     `json:"filter_months_remaining"`
	SummerBypass     int     `json:"summer_bypass_mode"`
	SummerBypassAf   int     `json:"summer_bypass_af_mode"`
	SummerBypassInC  float64 `json:"summer_bypass_indoor_temp"`
	SummerBypassOutC float64 `json:"summer_bypass_outdoor_temp"`

	Schedules   map[string]Schedule `json:"schedules"`
	SilentHours Schedule            `json:"silent_hours"`
}

// Snapshot returns a copy of the current state.
func (d *Device) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	schedules := make(map[string]Schedule, len(d.tsDecoded))
	for k, v := range d.tsDecoded {
		schedules[k] = v
	}

	return Snapshot{
		Name:             d.dname,
		SupplyRPM:        d.supRPM,
		ExhaustRPM:       d.exhRPM,
		PowerW:           d.pwr,
		AirflowModeCode:  d.asAf,
		AirflowMode:      ModeName(d.asAf),
		DurationMinutes:  d.arMin,
		RemainingSeconds: d.asRsec,
		IndoorTempC:      d.extractTempC,
		OutdoorTempC:     d.outdoorTempC,
		SupplyTempC:      supplyTemp(d.extractTempC, d.outdoorTempC),
		SupplyAirflow:    d.cmAfSup,
		ExhaustAirflow:   d.cmAfExh,
		ExternalRH:       d.exrRH,
		InternalRH:       d.itkRH,
		ServiceMonths:    d.serviceMonths,
		FilterMonths:     d.filterMonths,
		SummerBypass:     d.sbpMode,
		SummerBypassAf:   d.sbpAf,
		SummerBypassInC:  d.sbpIt,
		SummerBypassOutC: d.sbpOt,
		Schedules:        schedules,
		SilentHours:      d.shrs,
	}
}

// Name returns the device's self-reported display name.
func (d *Device) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dname
}

// ModeName maps an airflow mode code to its name, empty for unknown codes.
func ModeName(code int) string {
	for name, c := range AirflowModes {
		if c == code {
			return name
		}
	}
	return ""
}

// ValidDuration reports whether minutes is an accepted manual duration.
func ValidDuration(minutes int) bool {
	for _, d := range ValidDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

// supplyTemp blends extract and outdoor temperatures into the supply
// estimate, weighted toward extract by the heat exchanger efficiency.
func supplyTemp(extract, outdoor float64) float64 {
	return ExtractWeight*extract + (1-ExtractWeight)*outdoor
}
