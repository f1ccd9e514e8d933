package policyform

import (
	"strings"

	"github.com/hazyhaar/polizas/extraction"
)

// Tab names, in display order.
const (
	TabPoliza        = "poliza"
	TabAsegurado     = "asegurado"
	TabVehiculo      = "vehiculo"
	TabFinanciero    = "financiero"
	TabObservaciones = "observaciones"
)

// Tabs lists the form tabs in order.
var Tabs = []string{TabPoliza, TabAsegurado, TabVehiculo, TabFinanciero, TabObservaciones}

type cleanKind int

const (
	cleanText cleanKind = iota
	cleanUpper
	cleanPlate
	cleanLower
	cleanDate
	cleanRaw // multi-line free text; only trimmed
)

type formField struct {
	name  string
	tab   string
	label string
	kind  cleanKind
	str   func(*Form) *string
	num   func(*Form) *float64
	in    func(*Form) *int
}

func (fd formField) filled(f *Form) bool {
	switch {
	case fd.str != nil:
		return *fd.str(f) != ""
	case fd.num != nil:
		return *fd.num(f) != 0
	default:
		return *fd.in(f) != 0
	}
}

func (fd formField) clean(s string) string {
	switch fd.kind {
	case cleanRaw:
		return strings.TrimSpace(s)
	case cleanUpper:
		return strings.ToUpper(strings.Join(strings.Fields(s), " "))
	case cleanPlate:
		return strings.ToUpper(strings.Join(strings.Fields(strings.ReplaceAll(s, "-", " ")), ""))
	case cleanLower:
		return strings.ToLower(strings.TrimSpace(s))
	case cleanDate:
		return extraction.NormalizeDate(s)
	default:
		return strings.Join(strings.Fields(s), " ")
	}
}

var formFields = []formField{
	{name: "numeroPoliza", tab: TabPoliza, label: "Número de póliza", kind: cleanUpper, str: func(f *Form) *string { return &f.NumeroPoliza }},
	{name: "ramo", tab: TabPoliza, label: "Ramo", str: func(f *Form) *string { return &f.Ramo }},
	{name: "compania", tab: TabPoliza, label: "Compañía", str: func(f *Form) *string { return &f.Compania }},
	{name: "corredor", tab: TabPoliza, label: "Corredor", str: func(f *Form) *string { return &f.Corredor }},
	{name: "fechaEmision", tab: TabPoliza, label: "Fecha de emisión", kind: cleanDate, str: func(f *Form) *string { return &f.FechaEmision }},
	{name: "vigenciaDesde", tab: TabPoliza, label: "Vigencia desde", kind: cleanDate, str: func(f *Form) *string { return &f.VigenciaDesde }},
	{name: "vigenciaHasta", tab: TabPoliza, label: "Vigencia hasta", kind: cleanDate, str: func(f *Form) *string { return &f.VigenciaHasta }},
	{name: "endoso", tab: TabPoliza, label: "Endoso", str: func(f *Form) *string { return &f.Endoso }},
	{name: "cobertura", tab: TabPoliza, label: "Cobertura", str: func(f *Form) *string { return &f.Cobertura }},

	{name: "asegurado", tab: TabAsegurado, label: "Asegurado", str: func(f *Form) *string { return &f.Asegurado }},
	{name: "documento", tab: TabAsegurado, label: "Documento", str: func(f *Form) *string { return &f.Documento }},
	{name: "email", tab: TabAsegurado, label: "Email", kind: cleanLower, str: func(f *Form) *string { return &f.Email }},
	{name: "telefono", tab: TabAsegurado, label: "Teléfono", str: func(f *Form) *string { return &f.Telefono }},
	{name: "direccion", tab: TabAsegurado, label: "Dirección", str: func(f *Form) *string { return &f.Direccion }},
	{name: "localidad", tab: TabAsegurado, label: "Localidad", str: func(f *Form) *string { return &f.Localidad }},
	{name: "departamento", tab: TabAsegurado, label: "Departamento", str: func(f *Form) *string { return &f.Departamento }},

	{name: "vehiculoMarca", tab: TabVehiculo, label: "Marca", str: func(f *Form) *string { return &f.VehiculoMarca }},
	{name: "vehiculoModelo", tab: TabVehiculo, label: "Modelo", str: func(f *Form) *string { return &f.VehiculoModelo }},
	{name: "vehiculoAnio", tab: TabVehiculo, label: "Año", in: func(f *Form) *int { return &f.VehiculoAnio }},
	{name: "vehiculoMatricula", tab: TabVehiculo, label: "Matrícula", kind: cleanPlate, str: func(f *Form) *string { return &f.VehiculoMatricula }},
	{name: "vehiculoMotor", tab: TabVehiculo, label: "Motor", kind: cleanUpper, str: func(f *Form) *string { return &f.VehiculoMotor }},
	{name: "vehiculoChasis", tab: TabVehiculo, label: "Chasis", kind: cleanUpper, str: func(f *Form) *string { return &f.VehiculoChasis }},
	{name: "vehiculoCombustible", tab: TabVehiculo, label: "Combustible", str: func(f *Form) *string { return &f.VehiculoCombustible }},
	{name: "zona", tab: TabVehiculo, label: "Zona de circulación", str: func(f *Form) *string { return &f.Zona }},
	{name: "uso", tab: TabVehiculo, label: "Uso", str: func(f *Form) *string { return &f.Uso }},

	{name: "moneda", tab: TabFinanciero, label: "Moneda", kind: cleanUpper, str: func(f *Form) *string { return &f.Moneda }},
	{name: "formaPago", tab: TabFinanciero, label: "Forma de pago", str: func(f *Form) *string { return &f.FormaPago }},
	{name: "prima", tab: TabFinanciero, label: "Prima", num: func(f *Form) *float64 { return &f.Prima }},
	{name: "premio", tab: TabFinanciero, label: "Premio", num: func(f *Form) *float64 { return &f.Premio }},
	{name: "montoTotal", tab: TabFinanciero, label: "Monto total", num: func(f *Form) *float64 { return &f.MontoTotal }},
	{name: "sumaAsegurada", tab: TabFinanciero, label: "Suma asegurada", num: func(f *Form) *float64 { return &f.SumaAsegurada }},
	{name: "valorCuota", tab: TabFinanciero, label: "Valor de cuota", num: func(f *Form) *float64 { return &f.ValorCuota }},
	{name: "cantidadCuotas", tab: TabFinanciero, label: "Cantidad de cuotas", in: func(f *Form) *int { return &f.CantidadCuotas }},

	{name: "observaciones", tab: TabObservaciones, label: "Observaciones", kind: cleanRaw, str: func(f *Form) *string { return &f.Observaciones }},
}

var byName = func() map[string]formField {
	m := make(map[string]formField, len(formFields))
	for _, fd := range formFields {
		m[fd.name] = fd
	}
	return m
}()

// Required lists the fields a policy cannot be submitted without.
var Required = extraction.RequiredFields

var requiredSet = func() map[string]bool {
	m := make(map[string]bool, len(Required))
	for _, n := range Required {
		m[n] = true
	}
	return m
}()

// Label returns the display label of a field, or the name itself.
func Label(name string) string {
	if fd, ok := byName[name]; ok {
		return fd.label
	}
	return name
}

// FieldNames lists every form field in tab order.
func FieldNames() []string {
	out := make([]string, len(formFields))
	for i, fd := range formFields {
		out[i] = fd.name
	}
	return out
}
