package extraction

type valueKind int

const (
	kindText valueKind = iota
	kindEmail
	kindPlate
	kindCode // upper-case, no inner spaces removed
	kindDate
	kindAmount
	kindInt
)

// field describes one canonical target and the keys it may appear under,
// most specific first.
type field struct {
	name string
	keys []string
	kind valueKind
	str  func(*Result) *string
	num  func(*Result) *float64
	in   func(*Result) *int
}

func (f field) isZero(r *Result) bool {
	switch {
	case f.str != nil:
		return *f.str(r) == ""
	case f.num != nil:
		return *f.num(r) == 0
	default:
		return *f.in(r) == 0
	}
}

// bags are the containers probed for every key, in order. The empty bag is
// the document root.
var bags = []string{
	"",
	"extractedFields",
	"extracted_fields",
	"camposExtraidos",
	"datosFormateados",
	"data",
	"result",
	"fields",
	"documents.0.fields",
	"analyzeResult.documents.0.fields",
}

// unwrapKeys are tried, in order, when a key resolves to an object.
var unwrapKeys = []string{"value", "valueString", "valueNumber", "valueDate", "content", "text", "valueCurrency", "amount"}

var fields = []field{
	{name: "numeroPoliza", kind: kindCode, str: func(r *Result) *string { return &r.NumeroPoliza },
		keys: []string{"numeroPoliza", "numero_poliza", "nroPoliza", "polizaNumero", "numeroDePoliza", "policyNumber", "PolicyNumber", "poliza.numero"}},
	{name: "asegurado", kind: kindText, str: func(r *Result) *string { return &r.Asegurado },
		keys: []string{"asegurado", "nombreAsegurado", "asegurado_nombre", "tomador", "cliente", "insuredName", "InsuredName", "policyHolder", "PolicyHolder", "asegurado.nombre"}},
	{name: "documento", kind: kindText, str: func(r *Result) *string { return &r.Documento },
		keys: []string{"documento", "documentoAsegurado", "cedula", "ci", "rut", "documentNumber", "taxId", "asegurado.documento"}},
	{name: "email", kind: kindEmail, str: func(r *Result) *string { return &r.Email },
		keys: []string{"email", "correo", "mail", "emailAsegurado", "correoElectronico", "asegurado.email"}},
	{name: "telefono", kind: kindText, str: func(r *Result) *string { return &r.Telefono },
		keys: []string{"telefono", "celular", "telefonoAsegurado", "phone", "phoneNumber", "asegurado.telefono"}},
	{name: "direccion", kind: kindText, str: func(r *Result) *string { return &r.Direccion },
		keys: []string{"direccion", "domicilio", "direccionAsegurado", "address", "asegurado.direccion"}},
	{name: "localidad", kind: kindText, str: func(r *Result) *string { return &r.Localidad },
		keys: []string{"localidad", "ciudad", "city"}},
	{name: "departamento", kind: kindText, str: func(r *Result) *string { return &r.Departamento },
		keys: []string{"departamento", "provincia", "state"}},

	{name: "ramo", kind: kindText, str: func(r *Result) *string { return &r.Ramo },
		keys: []string{"ramo", "tipoSeguro", "seccion", "lineOfBusiness"}},
	{name: "compania", kind: kindText, str: func(r *Result) *string { return &r.Compania },
		keys: []string{"compania", "companía", "aseguradora", "company", "insurer"}},
	{name: "corredor", kind: kindText, str: func(r *Result) *string { return &r.Corredor },
		keys: []string{"corredor", "productor", "broker"}},
	{name: "fechaEmision", kind: kindDate, str: func(r *Result) *string { return &r.FechaEmision },
		keys: []string{"fechaEmision", "fecha_emision", "emision", "fechaDeEmision", "issueDate", "IssueDate"}},
	{name: "vigenciaDesde", kind: kindDate, str: func(r *Result) *string { return &r.VigenciaDesde },
		keys: []string{"vigenciaDesde", "vigencia_desde", "fechaDesde", "inicioVigencia", "desde", "startDate", "EffectiveDate", "vigencia.desde"}},
	{name: "vigenciaHasta", kind: kindDate, str: func(r *Result) *string { return &r.VigenciaHasta },
		keys: []string{"vigenciaHasta", "vigencia_hasta", "fechaHasta", "finVigencia", "hasta", "endDate", "ExpirationDate", "vigencia.hasta"}},

	{name: "vehiculoMarca", kind: kindText, str: func(r *Result) *string { return &r.VehiculoMarca },
		keys: []string{"vehiculoMarca", "marca", "marcaVehiculo", "vehicleMake", "vehiculo.marca"}},
	{name: "vehiculoModelo", kind: kindText, str: func(r *Result) *string { return &r.VehiculoModelo },
		keys: []string{"vehiculoModelo", "modelo", "modeloVehiculo", "vehicleModel", "vehiculo.modelo"}},
	{name: "vehiculoAnio", kind: kindInt, in: func(r *Result) *int { return &r.VehiculoAnio },
		keys: []string{"vehiculoAnio", "anio", "año", "anioVehiculo", "vehicleYear", "vehiculo.anio"}},
	{name: "vehiculoMatricula", kind: kindPlate, str: func(r *Result) *string { return &r.VehiculoMatricula },
		keys: []string{"vehiculoMatricula", "matricula", "patente", "placa", "licensePlate", "vehiculo.matricula"}},
	{name: "vehiculoMotor", kind: kindCode, str: func(r *Result) *string { return &r.VehiculoMotor },
		keys: []string{"vehiculoMotor", "motor", "numeroMotor", "engineNumber", "vehiculo.motor"}},
	{name: "vehiculoChasis", kind: kindCode, str: func(r *Result) *string { return &r.VehiculoChasis },
		keys: []string{"vehiculoChasis", "chasis", "numeroChasis", "vin", "vehiculo.chasis"}},
	{name: "vehiculoCombustible", kind: kindText, str: func(r *Result) *string { return &r.VehiculoCombustible },
		keys: []string{"vehiculoCombustible", "combustible", "fuelType", "vehiculo.combustible"}},

	{name: "moneda", kind: kindCode, str: func(r *Result) *string { return &r.Moneda },
		keys: []string{"moneda", "currency", "divisa"}},
	{name: "formaPago", kind: kindText, str: func(r *Result) *string { return &r.FormaPago },
		keys: []string{"formaPago", "forma_pago", "medioPago", "paymentMethod"}},
	{name: "prima", kind: kindAmount, num: func(r *Result) *float64 { return &r.Prima },
		keys: []string{"prima", "primaNeta", "primaComercial", "netPremium"}},
	{name: "premio", kind: kindAmount, num: func(r *Result) *float64 { return &r.Premio },
		keys: []string{"premio", "premioTotal", "premium", "totalPremium"}},
	{name: "montoTotal", kind: kindAmount, num: func(r *Result) *float64 { return &r.MontoTotal },
		keys: []string{"montoTotal", "importeTotal", "total", "totalAmount"}},
	{name: "sumaAsegurada", kind: kindAmount, num: func(r *Result) *float64 { return &r.SumaAsegurada },
		keys: []string{"sumaAsegurada", "capitalAsegurado", "capital", "sumInsured"}},
	{name: "valorCuota", kind: kindAmount, num: func(r *Result) *float64 { return &r.ValorCuota },
		keys: []string{"valorCuota", "montoCuota", "importeCuota", "installmentAmount"}},
	{name: "cantidadCuotas", kind: kindInt, in: func(r *Result) *int { return &r.CantidadCuotas },
		keys: []string{"cantidadCuotas", "cuotas", "numeroCuotas", "installments"}},
}

var fieldByName = func() map[string]field {
	m := make(map[string]field, len(fields))
	for _, f := range fields {
		m[f.name] = f
	}
	return m
}()

// FieldNames lists every canonical field in order.
func FieldNames() []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.name
	}
	return out
}
