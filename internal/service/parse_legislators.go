package service

import (
	"database/sql"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/jjenkins/factbase/internal/model"
	"gopkg.in/yaml.v3"
)

const legislatorDateLayout = "2006-01-02"

// scalar accepts any YAML scalar as its literal text.
type scalar string

func (s *scalar) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", n.Line)
	}
	*s = scalar(n.Value)
	return nil
}

// scalarList accepts either a single scalar or a sequence of scalars.
type scalarList []string

func (l *scalarList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*l = scalarList{n.Value}
		return nil
	case yaml.SequenceNode:
		out := make(scalarList, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: expected a list of scalars", c.Line)
			}
			out = append(out, c.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a scalar or list", n.Line)
	}
}

type legislatorIDs struct {
	Bioguide         scalar     `yaml:"bioguide"`
	BioguidePrevious scalarList `yaml:"bioguide_previous"`
	Thomas           scalar     `yaml:"thomas"`
	Govtrack         scalar     `yaml:"govtrack"`
	OpenSecrets      scalar     `yaml:"opensecrets"`
	VoteSmart        scalar     `yaml:"votesmart"`
	FEC              scalarList `yaml:"fec"`
	Wikipedia        scalar     `yaml:"wikipedia"`
	Ballotpedia      scalar     `yaml:"ballotpedia"`
	ICPSR            scalar     `yaml:"icpsr"`
	LIS              scalar     `yaml:"lis"`
	CSPAN            scalar     `yaml:"cspan"`
	HouseHistory     scalar     `yaml:"house_history"`
	Wikidata         scalar     `yaml:"wikidata"`
}

type legislatorYAML struct {
	ID   legislatorIDs `yaml:"id"`
	Name struct {
		First        string `yaml:"first"`
		Middle       string `yaml:"middle"`
		Last         string `yaml:"last"`
		Suffix       string `yaml:"suffix"`
		Nickname     string `yaml:"nickname"`
		OfficialFull string `yaml:"official_full"`
	} `yaml:"name"`
	Bio struct {
		Birthday string `yaml:"birthday"`
		Gender   string `yaml:"gender"`
	} `yaml:"bio"`
	Terms []struct {
		Type     string `yaml:"type"`
		Start    string `yaml:"start"`
		End      string `yaml:"end"`
		State    string `yaml:"state"`
		District *int64 `yaml:"district"`
		Class    *int64 `yaml:"class"`
		Party    string `yaml:"party"`
		URL      string `yaml:"url"`
	} `yaml:"terms"`
	Social legislatorSocial `yaml:"social"`
}

type legislatorSocial struct {
	Twitter     scalar `yaml:"twitter"`
	TwitterID   scalar `yaml:"twitter_id"`
	Facebook    scalar `yaml:"facebook"`
	FacebookID  scalar `yaml:"facebook_id"`
	Youtube     scalar `yaml:"youtube"`
	YoutubeID   scalar `yaml:"youtube_id"`
	Instagram   scalar `yaml:"instagram"`
	InstagramID scalar `yaml:"instagram_id"`
}

func (ids legislatorIDs) bag() model.Bag {
	b := model.Bag{}
	putList(b, model.ExternalBioguidePrevious, ids.BioguidePrevious)
	putList(b, model.ExternalFEC, ids.FEC)
	putString(b, model.ExternalThomas, ids.Thomas)
	putInt(b, model.ExternalGovtrack, ids.Govtrack)
	putString(b, model.ExternalOpenSecrets, ids.OpenSecrets)
	putInt(b, model.ExternalVoteSmart, ids.VoteSmart)
	putString(b, model.ExternalWikipedia, ids.Wikipedia)
	putString(b, model.ExternalBallotpedia, ids.Ballotpedia)
	putInt(b, model.ExternalICPSR, ids.ICPSR)
	putString(b, model.ExternalLIS, ids.LIS)
	putInt(b, model.ExternalCSPAN, ids.CSPAN)
	putInt(b, model.ExternalHouseHistory, ids.HouseHistory)
	putString(b, model.ExternalWikidata, ids.Wikidata)
	return b
}

func (s legislatorSocial) bag() model.Bag {
	b := model.Bag{}
	putString(b, model.SocialTwitter, s.Twitter)
	putString(b, model.SocialTwitterID, s.TwitterID)
	putString(b, model.SocialFacebook, s.Facebook)
	putString(b, model.SocialFacebookID, s.FacebookID)
	putString(b, model.SocialYoutube, s.Youtube)
	putString(b, model.SocialYoutubeID, s.YoutubeID)
	putString(b, model.SocialInstagram, s.Instagram)
	putString(b, model.SocialInstagramID, s.InstagramID)
	return b
}

func putString(b model.Bag, key string, v scalar) {
	if s := strings.TrimSpace(string(v)); s != "" {
		b[key] = model.StringValue(s)
	}
}

// putInt stores numeric IDs as integers, keeping non-numeric text as is.
func putInt(b model.Bag, key string, v scalar) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		b[key] = model.IntValue(n)
		return
	}
	b[key] = model.StringValue(s)
}

func putList(b model.Bag, key string, v scalarList) {
	if len(v) > 0 {
		b[key] = model.ListValue(v)
	}
}

// ParseLegislator converts one legislator node.
func ParseLegislator(index int, node *yaml.Node) (model.LegislatorRecord, error) {
	var raw legislatorYAML
	if err := node.Decode(&raw); err != nil {
		return model.LegislatorRecord{}, &ParseError{Source: model.SyncLegislators, Line: index, Err: err}
	}

	rec := model.LegislatorRecord{
		Index:        index,
		BioguideID:   strings.TrimSpace(string(raw.ID.Bioguide)),
		FirstName:    strings.TrimSpace(raw.Name.First),
		MiddleName:   strings.TrimSpace(raw.Name.Middle),
		LastName:     strings.TrimSpace(raw.Name.Last),
		Suffix:       strings.TrimSpace(raw.Name.Suffix),
		Nickname:     strings.TrimSpace(raw.Name.Nickname),
		OfficialFull: strings.TrimSpace(raw.Name.OfficialFull),
		Gender:       strings.TrimSpace(raw.Bio.Gender),
		ExternalIDs:  raw.ID.bag(),
		SocialMedia:  raw.Social.bag(),
	}
	var ok bool
	if rec.BirthDate, ok = parseDate(raw.Bio.Birthday, legislatorDateLayout); !ok {
		return model.LegislatorRecord{}, &ParseError{Source: model.SyncLegislators, Line: index, Field: "bio.birthday", Value: raw.Bio.Birthday, Reason: "not a date"}
	}

	for i, t := range raw.Terms {
		term := model.LegislatorTerm{
			State: strings.ToUpper(strings.TrimSpace(t.State)),
			Party: strings.TrimSpace(t.Party),
			URL:   strings.TrimSpace(t.URL),
		}
		switch t.Type {
		case "sen":
			term.Chamber = model.ChamberSenate
		case "rep":
			term.Chamber = model.ChamberHouse
		default:
			return model.LegislatorRecord{}, &ParseError{Source: model.SyncLegislators, Line: index, Field: fmt.Sprintf("terms[%d].type", i), Value: t.Type, Reason: "unknown term type"}
		}
		start, ok := parseDate(t.Start, legislatorDateLayout)
		if !ok || !start.Valid {
			return model.LegislatorRecord{}, &ParseError{Source: model.SyncLegislators, Line: index, Field: fmt.Sprintf("terms[%d].start", i), Value: t.Start, Reason: "not a date"}
		}
		term.Start = start.Time
		if term.End, ok = parseDate(t.End, legislatorDateLayout); !ok {
			return model.LegislatorRecord{}, &ParseError{Source: model.SyncLegislators, Line: index, Field: fmt.Sprintf("terms[%d].end", i), Value: t.End, Reason: "not a date"}
		}
		if t.District != nil {
			term.District = sql.NullInt64{Int64: *t.District, Valid: true}
		}
		if t.Class != nil {
			term.Class = sql.NullInt64{Int64: *t.Class, Valid: true}
		}
		rec.Terms = append(rec.Terms, term)
	}

	if err := validateRecord(model.SyncLegislators, index, rec); err != nil {
		return model.LegislatorRecord{}, err
	}
	return rec, nil
}

// decodeSequence reads a whole YAML document that must be a sequence and
// returns its element nodes.
func decodeSequence(r io.Reader) ([]*yaml.Node, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected a YAML sequence at line %d", doc.Line)
	}
	return doc.Content, nil
}

// ReadLegislators parses every node of a legislators YAML file. Per-node
// failures are yielded as *ParseError; a malformed document ends the
// sequence with a plain error.
func ReadLegislators(r io.Reader) iter.Seq2[model.LegislatorRecord, error] {
	return func(yield func(model.LegislatorRecord, error) bool) {
		nodes, err := decodeSequence(r)
		if err != nil {
			yield(model.LegislatorRecord{}, err)
			return
		}
		for i, n := range nodes {
			if !yield(ParseLegislator(i, n)) {
				return
			}
		}
	}
}

// ReadLegislatorSocial returns the social media bags of a
// legislators-social-media file keyed by bioguide ID. Entries without a
// bioguide ID or that fail to decode are skipped.
func ReadLegislatorSocial(r io.Reader) (map[string]model.Bag, error) {
	nodes, err := decodeSequence(r)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Bag, len(nodes))
	for _, n := range nodes {
		var raw struct {
			ID     legislatorIDs    `yaml:"id"`
			Social legislatorSocial `yaml:"social"`
		}
		if err := n.Decode(&raw); err != nil {
			continue
		}
		id := strings.TrimSpace(string(raw.ID.Bioguide))
		if id == "" {
			continue
		}
		if b := raw.Social.bag(); len(b) > 0 {
			out[id] = b
		}
	}
	return out, nil
}
