package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// ExternalIDKey names a cross-reference registry.
type ExternalIDKey = string

const (
	ExternalBioguidePrevious ExternalIDKey = "bioguide_previous"
	ExternalFEC              ExternalIDKey = "fec"
	ExternalGovtrack         ExternalIDKey = "govtrack"
	ExternalOpenSecrets      ExternalIDKey = "opensecrets"
	ExternalVoteSmart        ExternalIDKey = "votesmart"
	ExternalThomas           ExternalIDKey = "thomas"
	ExternalWikipedia        ExternalIDKey = "wikipedia"
	ExternalBallotpedia      ExternalIDKey = "ballotpedia"
	ExternalICPSR            ExternalIDKey = "icpsr"
	ExternalLIS              ExternalIDKey = "lis"
	ExternalCSPAN            ExternalIDKey = "cspan"
	ExternalHouseHistory     ExternalIDKey = "house_history"
	ExternalWikidata         ExternalIDKey = "wikidata"
)

// ExternalIDKeys lists the recognized keys of Person.ExternalIDs.
var ExternalIDKeys = []ExternalIDKey{
	ExternalBioguidePrevious, ExternalFEC, ExternalGovtrack, ExternalOpenSecrets,
	ExternalVoteSmart, ExternalThomas, ExternalWikipedia, ExternalBallotpedia,
	ExternalICPSR, ExternalLIS, ExternalCSPAN, ExternalHouseHistory, ExternalWikidata,
}

// SocialKey names a social media account field.
type SocialKey = string

const (
	SocialTwitter     SocialKey = "twitter"
	SocialTwitterID   SocialKey = "twitter_id"
	SocialFacebook    SocialKey = "facebook"
	SocialFacebookID  SocialKey = "facebook_id"
	SocialYoutube     SocialKey = "youtube"
	SocialYoutubeID   SocialKey = "youtube_id"
	SocialInstagram   SocialKey = "instagram"
	SocialInstagramID SocialKey = "instagram_id"
)

// SocialKeys lists the recognized keys of Person.SocialMedia.
var SocialKeys = []SocialKey{
	SocialTwitter, SocialTwitterID, SocialFacebook, SocialFacebookID,
	SocialYoutube, SocialYoutubeID, SocialInstagram, SocialInstagramID,
}

// BagValue is a string, an integer or a list of strings.
type BagValue struct {
	str   string
	num   int64
	list  []string
	isNum bool
	isSet bool
}

func StringValue(s string) BagValue { return BagValue{str: s, isSet: s != ""} }

func IntValue(n int64) BagValue { return BagValue{num: n, isNum: true, isSet: true} }

func ListValue(l []string) BagValue {
	return BagValue{list: slices.Clone(l), isSet: len(l) > 0}
}

// Empty reports whether v carries no value. Empty values never overwrite.
func (v BagValue) Empty() bool { return !v.isSet }

func (v BagValue) Equal(o BagValue) bool {
	return v.isSet == o.isSet && v.isNum == o.isNum && v.num == o.num &&
		v.str == o.str && slices.Equal(v.list, o.list)
}

// String renders the value for logs and display.
func (v BagValue) String() string {
	switch {
	case !v.isSet:
		return ""
	case v.isNum:
		return strconv.FormatInt(v.num, 10)
	case v.list != nil:
		return fmt.Sprint(v.list)
	default:
		return v.str
	}
}

func (v BagValue) MarshalJSON() ([]byte, error) {
	switch {
	case !v.isSet:
		return []byte("null"), nil
	case v.isNum:
		return json.Marshal(v.num)
	case v.list != nil:
		return json.Marshal(v.list)
	default:
		return json.Marshal(v.str)
	}
}

func (v *BagValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*v = BagValue{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case '[':
		var l []string
		if err := json.Unmarshal(b, &l); err != nil {
			return err
		}
		*v = ListValue(l)
	default:
		var n int64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("bag value %s: %w", b, err)
		}
		*v = IntValue(n)
	}
	return nil
}

// Bag is a keyed set of heterogeneous values stored as a JSONB object.
type Bag map[string]BagValue

// Merge copies every non-empty value of in into b, adding new keys and
// overwriting differing ones. Keys of b missing from in are untouched.
// It reports whether b changed.
func (b *Bag) Merge(in Bag) bool {
	changed := false
	for k, v := range in {
		if v.Empty() {
			continue
		}
		if cur, ok := (*b)[k]; ok && cur.Equal(v) {
			continue
		}
		if *b == nil {
			*b = Bag{}
		}
		(*b)[k] = v
		changed = true
	}
	return changed
}

func (b Bag) Value() (driver.Value, error) {
	if b == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b)
}

func (b *Bag) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*b = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Bag", src)
	}
	out := Bag{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode bag: %w", err)
	}
	*b = out
	return nil
}
