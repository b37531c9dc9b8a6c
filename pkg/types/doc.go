// Package types defines the stand model consumed by the projection engine:
// strata, growth models, processing stages, polygons with their layers and
// species, projection parameters, configuration, and the error taxonomy.
//
// The orchestrator reads polygons only through the PolygonView interface;
// *Polygon is the in-memory implementation decoded from projection input.
package types
