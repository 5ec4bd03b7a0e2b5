package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sells-group/projectmerge/internal/model"
)

// Agency display names used by the baseline dataset.
const (
	agencyInterior = "Department of the Interior"
	agencyEnergy   = "Department of Energy"
	agencyEPA      = "Environmental Protection Agency"
	agencyCommerce = "Department of Commerce"
)

// draft is the source-independent intermediate a row type maps into.
// Values are still raw strings; finish turns a draft into a Project.
type draft struct {
	ID          string
	Name        string
	Description string

	Lat, Lon       string
	AltLat, AltLon string // fallback coordinates, always approximate
	LocationType   string

	State    string
	City     string
	County   string
	Tribe    string
	District string

	Amount  string
	Funding model.FundingSource

	Agency      string
	Bureau      string
	ProgramName string
	ProgramID   string
	Category    string
	Subcategory string
	Link        string
}

// rowContext identifies the row being mapped, for derived identifiers.
type rowContext struct {
	File string
	Row  int
}

// sourceRow is implemented by every per-schema row type.
type sourceRow interface {
	draft(rc rowContext) (draft, error)
}

// syntheticID derives a stable short identifier for sources that carry no
// award number of their own.
func syntheticID(prefix string, rc rowContext, name string) string {
	seed := rc.File + "|" + strconv.Itoa(rc.Row) + "|" + name
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))
	return prefix + strings.ReplaceAll(id.String(), "-", "")[:6]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// whRow is the baseline canonical schema.
type whRow struct {
	UniqueID      string `csv:"Unique ID"`
	ProjectName   string `csv:"Project Name"`
	Description   string `csv:"Project Description"`
	Latitude      string `csv:"Latitude"`
	Longitude     string `csv:"Longitude"`
	LocationType  string `csv:"Project Location Type"`
	State         string `csv:"State"`
	City          string `csv:"City"`
	County        string `csv:"County"`
	Tribe         string `csv:"Tribe"`
	District      string `csv:"118th CD"`
	FundingAmount string `csv:"Funding Amount"`
	FundingSource string `csv:"Funding Source"`
	Agency        string `csv:"Agency Name"`
	Bureau        string `csv:"Bureau Name"`
	Category      string `csv:"Category"`
	Subcategory   string `csv:"Subcategory"`
	ProgramName   string `csv:"Program Name"`
	ProgramID     string `csv:"Program ID"`
	Link          string `csv:"Link"`
}

func (r *whRow) draft(rowContext) (draft, error) {
	return draft{
		ID:           strings.TrimSpace(r.UniqueID),
		Name:         r.ProjectName,
		Description:  r.Description,
		Lat:          r.Latitude,
		Lon:          r.Longitude,
		LocationType: r.LocationType,
		State:        r.State,
		City:         r.City,
		County:       r.County,
		Tribe:        r.Tribe,
		District:     r.District,
		Amount:       r.FundingAmount,
		Funding:      model.ParseFundingSource(r.FundingSource),
		Agency:       r.Agency,
		Bureau:       r.Bureau,
		ProgramName:  r.ProgramName,
		ProgramID:    r.ProgramID,
		Category:     r.Category,
		Subcategory:  r.Subcategory,
		Link:         r.Link,
	}, nil
}

var trailingStateRe = regexp.MustCompile(`([A-Z]{2})\s*$`)

// biaRow is the Bureau of Indian Affairs extract.
type biaRow struct {
	Project     string `csv:"project"`
	Benefits    string `csv:"benefits"`
	PointY      string `csv:"POINT_Y"`
	PointX      string `csv:"POINT_X"`
	Location    string `csv:"location_n"`
	Amount      string `csv:"proj_am"`
	FundingType string `csv:"fundingtype"`
	ProjType    string `csv:"proj_type"`
	FiscalYear  string `csv:"fiscal_year"`
	Hyperlink   string `csv:"hyperlink"`
}

func (r *biaRow) draft(rowContext) (draft, error) {
	loc := strings.TrimSpace(r.Location)
	var state string
	if m := trailingStateRe.FindStringSubmatch(loc); m != nil {
		state = m[1]
	}

	// "Navajo Nation, AZ" names a tribe; "Gallup, NM" names a city.
	place := strings.TrimSpace(strings.Split(loc, ",")[0])
	var city, tribe string
	if containsAny(loc, "Tribe", "Nation", "Reservation") {
		tribe = place
	} else {
		city = place
	}

	projType := strings.TrimSpace(r.ProjType)
	return draft{
		Name:        r.Project,
		Description: r.Benefits,
		Lat:         r.PointY,
		Lon:         r.PointX,
		State:       state,
		City:        city,
		Tribe:       tribe,
		Amount:      r.Amount,
		Funding:     model.ParseFundingSource(r.FundingType),
		Agency:      agencyInterior,
		Bureau:      "Bureau of Indian Affairs",
		Category:    biaCategory(projType),
		Subcategory: projType,
		ProgramName: "BIA " + projType + " Program",
		ProgramID:   "BIA" + strings.TrimSpace(r.FiscalYear),
		Link:        r.Hyperlink,
	}, nil
}

// doeRow is the Department of Energy investment extract.
type doeRow struct {
	Project   string `csv:"project"`
	Company   string `csv:"company_name"`
	Tech      string `csv:"tech"`
	Latitude  string `csv:"latitude"`
	Longitude string `csv:"longitude"`
	State     string `csv:"state"`
	City      string `csv:"city"`
	PubInvest string `csv:"pubinvest"`
	Category  string `csv:"category"`
	Private   string `csv:"private"`
}

func (r *doeRow) draft(rc rowContext) (draft, error) {
	if strings.EqualFold(strings.TrimSpace(r.Private), "yes") {
		return draft{}, ErrRowFiltered
	}

	project := strings.TrimSpace(r.Project)
	tech := strings.TrimSpace(r.Tech)
	desc := project + " - " + strings.TrimSpace(r.Company)
	if tech != "" && !strings.EqualFold(tech, "other") {
		desc += " - " + tech + " technology"
	}

	funding := model.FundingBIL
	if strings.Contains(project, "IRA Section") {
		funding = model.FundingIRA
	}

	return draft{
		Name:        project,
		Description: desc,
		Lat:         r.Latitude,
		Lon:         r.Longitude,
		State:       r.State,
		City:        r.City,
		Amount:      r.PubInvest,
		Funding:     funding,
		Agency:      agencyEnergy,
		Category:    doeCategory(r.Category, tech),
		Subcategory: tech,
		ProgramName: project,
		ProgramID:   syntheticID("DOE", rc, project),
	}, nil
}

// doiRow is the Department of the Interior announcement extract.
type doiRow struct {
	Title       string `csv:"Project Title"`
	ProgramName string `csv:"Program Name"`
	Latitude    string `csv:"Latitude"`
	Longitude   string `csv:"Longitude"`
	State       string `csv:"State or US Territory"`
	Tribe       string `csv:"Tribe"`
	Bureau      string `csv:"Bureau Name"`
	ProgramArea string `csv:"Program Area"`
	Website     string `csv:"Program Website"`
	Funding     string `csv:"Total Announced Funding Amount"`
}

func (r *doiRow) draft(rc rowContext) (draft, error) {
	if a := Amount(r.Funding); !a.Known || a.Cents == 0 {
		return draft{}, ErrRowFiltered
	}
	area := strings.TrimSpace(r.ProgramArea)
	return draft{
		Name:        r.Title,
		Description: r.ProgramName,
		Lat:         r.Latitude,
		Lon:         r.Longitude,
		State:       r.State,
		Tribe:       r.Tribe,
		Amount:      r.Funding,
		Funding:     model.FundingBIL,
		Agency:      agencyInterior,
		Bureau:      r.Bureau,
		Category:    doiCategory(area),
		Subcategory: area,
		ProgramName: r.ProgramName,
		ProgramID:   syntheticID("DOI", rc, r.Title),
		Link:        r.Website,
	}, nil
}

// epaRow is the Environmental Protection Agency award extract.
type epaRow struct {
	Title           string `csv:"Project Title"`
	Description     string `csv:"Project Description"`
	Latitude        string `csv:"Latitude"`
	Longitude       string `csv:"Longitude"`
	State           string `csv:"State"`
	City            string `csv:"City"`
	County          string `csv:"County"`
	AwardAmount     string `csv:"Award Amount"`
	FundingSource   string `csv:"Funding Source"`
	Investment      string `csv:"Investment Category"`
	Program         string `csv:"Program"`
	FAIN            string `csv:"Federal Award Identification Number"`
	WebsiteURL      string `csv:"Website Url"`
	AnnouncementURL string `csv:"Announcement Url"`
}

func (r *epaRow) draft(rc rowContext) (draft, error) {
	return draft{
		Name:        r.Title,
		Description: r.Description,
		Lat:         r.Latitude,
		Lon:         r.Longitude,
		State:       r.State,
		City:        r.City,
		County:      r.County,
		Amount:      r.AwardAmount,
		Funding:     model.ParseFundingSource(r.FundingSource),
		Agency:      agencyEPA,
		Category:    epaCategory(r.Investment, r.Program),
		Subcategory: r.Program,
		ProgramName: r.Program,
		ProgramID:   firstNonEmpty(r.FAIN, syntheticID("EPA", rc, r.Title)),
		Link:        firstNonEmpty(r.WebsiteURL, r.AnnouncementURL),
	}, nil
}

// noaaRow is the National Oceanic and Atmospheric Administration award extract.
type noaaRow struct {
	Title          string `csv:"Project Title"`
	Description    string `csv:"Project Description"`
	PopLat         string `csv:"POP.lat"`
	PopLng         string `csv:"POP.lng"`
	RecipientLat   string `csv:"Recipient.lat"`
	RecipientLong  string `csv:"Recipient.long"`
	PopState       string `csv:"Place of Performance State(s)"`
	RecipientState string `csv:"Recipient State"`
	Amount         string `csv:"Total Award Amount"`
	Statute        string `csv:"Funding Statute"`
	Goal           string `csv:"Strategic Plan Goal"`
	ProgramFull    string `csv:"Program Full Title"`
	ProgramShort   string `csv:"Program Short Title"`
	FAIN           string `csv:"Award Number (FAIN)"`
	ProgramSite    string `csv:"Program Website"`
	ProjectSite    string `csv:"Project Website"`
}

func (r *noaaRow) draft(rc rowContext) (draft, error) {
	state := firstNonEmpty(r.PopState, r.RecipientState)
	if i := strings.Index(state, ","); i >= 0 {
		state = strings.TrimSpace(state[:i])
	}
	return draft{
		Name:        r.Title,
		Description: r.Description,
		Lat:         r.PopLat,
		Lon:         r.PopLng,
		AltLat:      r.RecipientLat,
		AltLon:      r.RecipientLong,
		State:       state,
		Amount:      r.Amount,
		Funding:     model.ParseFundingSource(r.Statute),
		Agency:      agencyCommerce,
		Bureau:      "National Oceanic and Atmospheric Administration",
		Category:    noaaCategory(r.Goal, r.ProgramFull),
		Subcategory: r.ProgramShort,
		ProgramName: r.ProgramFull,
		ProgramID:   firstNonEmpty(r.FAIN, syntheticID("NOAA", rc, r.Title)),
		Link:        firstNonEmpty(r.ProgramSite, r.ProjectSite),
	}, nil
}

// usbrRow is the Bureau of Reclamation extract.
type usbrRow struct {
	Name         string `csv:"ProjectName"`
	Description  string `csv:"ProjectDescription"`
	Latitude     string `csv:"Latitude"`
	Longitude    string `csv:"Longitude"`
	State        string `csv:"State"`
	City         string `csv:"City"`
	Tribe        string `csv:"Tribe"`
	Announced    string `csv:"Announced"`
	Subsection   string `csv:"SubsectionTitle"`
	Subprogram   string `csv:"Subprogram"`
	Identifier   string `csv:"Identifier"`
	PressRelease string `csv:"PressRelease"`
}

func (r *usbrRow) draft(rc rowContext) (draft, error) {
	sub := strings.TrimSpace(r.Subsection)
	prog := strings.TrimSpace(r.Subprogram)
	return draft{
		Name:        r.Name,
		Description: r.Description,
		Lat:         r.Latitude,
		Lon:         r.Longitude,
		State:       r.State,
		City:        r.City,
		Tribe:       r.Tribe,
		Amount:      r.Announced,
		Funding:     model.FundingIRA,
		Agency:      agencyInterior,
		Bureau:      "Bureau of Reclamation",
		Category:    usbrCategory(sub, prog),
		Subcategory: prog,
		ProgramName: sub + " - " + prog,
		ProgramID:   firstNonEmpty(r.Identifier, syntheticID("USBR", rc, r.Name)),
		Link:        r.PressRelease,
	}, nil
}
