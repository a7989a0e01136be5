package utils

import (
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
	log "github.com/sirupsen/logrus"

	"xandpulse/models"
)

// GeoResolver maps node IPs to locations using a local GeoLite2 City database.
type GeoResolver struct {
	db    *geoip2.Reader
	cache sync.Map // ip -> *models.Location
}

// NewGeoResolver never fails: without a database every lookup returns nil.
func NewGeoResolver(dbPath string) *GeoResolver {
	g := &GeoResolver{}
	if dbPath == "" {
		return g
	}

	db, err := geoip2.Open(dbPath)
	if err != nil {
		log.Warnf("⚠️  Could not open GeoIP database at %s: %v", dbPath, err)
		return g
	}
	g.db = db
	return g
}

func (g *GeoResolver) Close() {
	if g != nil && g.db != nil {
		g.db.Close()
	}
}

// Lookup is safe to call on a nil resolver.
func (g *GeoResolver) Lookup(ipStr string) *models.Location {
	if g == nil || g.db == nil {
		return nil
	}

	if val, ok := g.cache.Load(ipStr); ok {
		return val.(*models.Location)
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil
	}

	record, err := g.db.City(ip)
	if err != nil {
		return nil
	}

	loc := &models.Location{
		Country: record.Country.Names["en"],
		City:    record.City.Names["en"],
		Lat:     record.Location.Latitude,
		Lon:     record.Location.Longitude,
	}
	if loc.Country == "" {
		loc = nil
	}
	g.cache.Store(ipStr, loc)
	return loc
}
