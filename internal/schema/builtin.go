package schema

// Built-in schemas for the three Medellín mobility datasets. Constraints
// mirror the published dataset documentation: every schema keys on a
// unique integer id, coordinates carry the usual WGS84 ranges, and the
// categorical columns enumerate the values the city actually publishes.

// Trafico describes the traffic-measurement feed.
func Trafico() *Schema {
	return &Schema{
		Name: "trafico",
		Columns: []Column{
			{Name: "id", Type: KindInt, Unique: true},
			{Name: "fecha", Type: KindDatetime},
			{Name: "zona_id", Type: KindString},
			{Name: "velocidad_promedio", Type: KindFloat, Nullable: true, Min: floatPtr(0), Max: floatPtr(200)},
			{Name: "volumen_vehicular", Type: KindInt, Nullable: true, Min: floatPtr(0)},
			{Name: "nivel_congestion", Type: KindString, Nullable: true, Allowed: []string{"bajo", "medio", "alto", "critico"}},
		},
	}
}

// Geo describes the zone reference table.
func Geo() *Schema {
	return &Schema{
		Name: "geo",
		Columns: []Column{
			{Name: "id", Type: KindInt, Unique: true},
			{Name: "nombre", Type: KindString},
			{Name: "latitud", Type: KindFloat, Min: floatPtr(-90), Max: floatPtr(90)},
			{Name: "longitud", Type: KindFloat, Min: floatPtr(-180), Max: floatPtr(180)},
			{Name: "tipo_zona", Type: KindString, Nullable: true},
		},
	}
}

// Incidentes describes the transport-incident feed.
func Incidentes() *Schema {
	return &Schema{
		Name: "incidentes",
		Columns: []Column{
			{Name: "id", Type: KindInt, Unique: true},
			{Name: "fecha_hora", Type: KindDatetime},
			{Name: "tipo_incidente", Type: KindString, Allowed: []string{"accidente", "congestion", "obra", "evento", "otro"}},
			{Name: "gravedad", Type: KindString, Allowed: []string{"leve", "moderado", "grave"}},
			{Name: "descripcion", Type: KindString, Nullable: true},
			{Name: "latitud", Type: KindFloat, Nullable: true, Min: floatPtr(-90), Max: floatPtr(90)},
			{Name: "longitud", Type: KindFloat, Nullable: true, Min: floatPtr(-180), Max: floatPtr(180)},
		},
	}
}

// DefaultRegistry returns a registry preloaded with the built-in
// schemas.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range []*Schema{Trafico(), Geo(), Incidentes()} {
		if err := r.Register(s); err != nil {
			// Built-ins are static; a registration failure is a
			// programming error.
			panic(err)
		}
	}
	return r
}
